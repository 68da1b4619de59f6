// Package feedback persists "not this person" rejections and maintains the
// rolling per-embedding reputation scores the ranking pipeline uses to
// suppress repeat false positives.
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facematch/internal/models"
	"github.com/your-org/facematch/internal/observability"
)

// Repository is the relational contract the store runs on.
type Repository interface {
	// InsertFeedbackOnce persists the record unless an identical
	// (event, selfie hash, rejected embedding) one exists; returns false on
	// duplicate.
	InsertFeedbackOnce(ctx context.Context, fb *models.Feedback) (bool, error)
	GetReputations(ctx context.Context, eventID uuid.UUID, embeddingIDs []string) (map[string]*models.ReputationScore, error)
	UpsertReputations(ctx context.Context, reps []*models.ReputationScore) error
	RejectedEmbeddingIDs(ctx context.Context, eventID uuid.UUID, selfieHash string) ([]string, error)
	ConfusingEmbeddingIDs(ctx context.Context, eventID uuid.UUID, minRate float64, minShown int) ([]string, error)
	FeedbackCounts(ctx context.Context, eventID uuid.UUID, selfieHash string) (models.FeedbackStats, error)
}

// EmbeddingSource retrieves stored vectors for hard-negative computation.
type EmbeddingSource interface {
	GetByIDs(ctx context.Context, eventID uuid.UUID, ids []string) (map[string][]float32, error)
}

type Store struct {
	repo    Repository
	vectors EmbeddingSource
}

func NewStore(repo Repository, vectors EmbeddingSource) *Store {
	return &Store{repo: repo, vectors: vectors}
}

// RecordFeedback persists one rejection and bumps the embedding's reputation.
// Idempotent: recording the same rejection twice stores one feedback record
// and one count increment. A first-ever rejection creates the reputation with
// times_shown=1, since a rejection implies at least one prior impression.
func (s *Store) RecordFeedback(ctx context.Context, fb *models.Feedback) error {
	if fb.ID == uuid.Nil {
		fb.ID = uuid.New()
	}

	inserted, err := s.repo.InsertFeedbackOnce(ctx, fb)
	if err != nil {
		return fmt.Errorf("record feedback: %w", err)
	}
	if !inserted {
		slog.Debug("duplicate feedback skipped",
			"event_id", fb.EventID, "embedding_id", fb.RejectedEmbeddingID)
		return nil
	}

	reps, err := s.repo.GetReputations(ctx, fb.EventID, []string{fb.RejectedEmbeddingID})
	if err != nil {
		return fmt.Errorf("load reputation: %w", err)
	}

	rep, ok := reps[fb.RejectedEmbeddingID]
	if !ok {
		rep = &models.ReputationScore{
			EventID:     fb.EventID,
			EmbeddingID: fb.RejectedEmbeddingID,
			TimesShown:  1,
		}
	}
	rep.TimesRejected++
	recompute(rep)

	if err := s.repo.UpsertReputations(ctx, []*models.ReputationScore{rep}); err != nil {
		return fmt.Errorf("update reputation: %w", err)
	}

	observability.FeedbackRecorded.Inc()
	slog.Info("feedback recorded",
		"event_id", fb.EventID,
		"image_id", fb.ImageID,
		"embedding_id", fb.RejectedEmbeddingID,
		"rejection_rate", rep.RejectionRate,
		"score_penalty", rep.ScorePenalty,
	)
	return nil
}

// IncrementShown bumps times_shown for every embedding surfaced in a search's
// final candidate set, creating missing reputation rows. This is how an
// often-shown, never-rejected face trends toward a smaller penalty.
func (s *Store) IncrementShown(ctx context.Context, eventID uuid.UUID, embeddingIDs []string) error {
	if len(embeddingIDs) == 0 {
		return nil
	}

	reps, err := s.repo.GetReputations(ctx, eventID, embeddingIDs)
	if err != nil {
		return fmt.Errorf("load reputations: %w", err)
	}

	updated := make([]*models.ReputationScore, 0, len(embeddingIDs))
	for _, id := range embeddingIDs {
		rep, ok := reps[id]
		if !ok {
			rep = &models.ReputationScore{EventID: eventID, EmbeddingID: id}
		}
		rep.TimesShown++
		recompute(rep)
		updated = append(updated, rep)
	}

	if err := s.repo.UpsertReputations(ctx, updated); err != nil {
		return fmt.Errorf("update reputations: %w", err)
	}
	return nil
}

// HardNegatives returns the embeddings this searcher has previously rejected.
// Vectors missing from the store are silently skipped.
func (s *Store) HardNegatives(ctx context.Context, eventID uuid.UUID, selfieHash string) ([][]float32, error) {
	ids, err := s.repo.RejectedEmbeddingIDs(ctx, eventID, selfieHash)
	if err != nil {
		return nil, fmt.Errorf("rejected embedding ids: %w", err)
	}
	return s.vectorsByIDs(ctx, eventID, ids)
}

// GlobalHardNegatives returns embeddings the whole event's searchers keep
// rejecting: rejection rate above 0.3 with at least 3 impressions.
func (s *Store) GlobalHardNegatives(ctx context.Context, eventID uuid.UUID) ([][]float32, error) {
	ids, err := s.repo.ConfusingEmbeddingIDs(ctx, eventID, confuserMinRate, confuserMinShown)
	if err != nil {
		return nil, fmt.Errorf("confusing embedding ids: %w", err)
	}
	return s.vectorsByIDs(ctx, eventID, ids)
}

// ReputationPenalties batch-loads the precomputed penalties for candidates.
func (s *Store) ReputationPenalties(ctx context.Context, eventID uuid.UUID, embeddingIDs []string) (map[string]float64, error) {
	if len(embeddingIDs) == 0 {
		return map[string]float64{}, nil
	}
	reps, err := s.repo.GetReputations(ctx, eventID, embeddingIDs)
	if err != nil {
		return nil, fmt.Errorf("reputation penalties: %w", err)
	}
	out := make(map[string]float64, len(reps))
	for id, rep := range reps {
		if rep.ScorePenalty != 0 {
			out[id] = rep.ScorePenalty
		}
	}
	return out, nil
}

// Stats returns the searcher's and the event's feedback volume.
func (s *Store) Stats(ctx context.Context, eventID uuid.UUID, selfieHash string) (models.FeedbackStats, error) {
	return s.repo.FeedbackCounts(ctx, eventID, selfieHash)
}

func (s *Store) vectorsByIDs(ctx context.Context, eventID uuid.UUID, ids []string) ([][]float32, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	byID, err := s.vectors.GetByIDs(ctx, eventID, ids)
	if err != nil {
		return nil, fmt.Errorf("load negative embeddings: %w", err)
	}
	out := make([][]float32, 0, len(byID))
	for _, id := range ids {
		if vec, ok := byID[id]; ok {
			out = append(out, vec)
		}
	}
	return out, nil
}

func recompute(rep *models.ReputationScore) {
	rep.RejectionRate = RejectionRate(rep.TimesShown, rep.TimesRejected)
	rep.ScorePenalty = ReputationPenalty(rep.TimesShown, rep.TimesRejected)
	rep.UpdatedAt = time.Now().UTC()
}
