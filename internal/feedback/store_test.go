package feedback

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facematch/internal/models"
)

type fakeRepo struct {
	feedback    map[string]bool // event|hash|embedding
	reputations map[string]*models.ReputationScore
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		feedback:    make(map[string]bool),
		reputations: make(map[string]*models.ReputationScore),
	}
}

func fbKey(eventID uuid.UUID, hash, embeddingID string) string {
	return eventID.String() + "|" + hash + "|" + embeddingID
}

func (r *fakeRepo) InsertFeedbackOnce(ctx context.Context, fb *models.Feedback) (bool, error) {
	key := fbKey(fb.EventID, fb.SelfieHash, fb.RejectedEmbeddingID)
	if r.feedback[key] {
		return false, nil
	}
	r.feedback[key] = true
	return true, nil
}

func (r *fakeRepo) GetReputations(ctx context.Context, eventID uuid.UUID, embeddingIDs []string) (map[string]*models.ReputationScore, error) {
	out := make(map[string]*models.ReputationScore)
	for _, id := range embeddingIDs {
		if rep, ok := r.reputations[id]; ok {
			cp := *rep
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *fakeRepo) UpsertReputations(ctx context.Context, reps []*models.ReputationScore) error {
	for _, rep := range reps {
		cp := *rep
		r.reputations[rep.EmbeddingID] = &cp
	}
	return nil
}

func (r *fakeRepo) RejectedEmbeddingIDs(ctx context.Context, eventID uuid.UUID, selfieHash string) ([]string, error) {
	var ids []string
	for key := range r.feedback {
		prefix := eventID.String() + "|" + selfieHash + "|"
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			ids = append(ids, key[len(prefix):])
		}
	}
	return ids, nil
}

func (r *fakeRepo) ConfusingEmbeddingIDs(ctx context.Context, eventID uuid.UUID, minRate float64, minShown int) ([]string, error) {
	var ids []string
	for id, rep := range r.reputations {
		if rep.RejectionRate > minRate && rep.TimesShown >= minShown {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *fakeRepo) FeedbackCounts(ctx context.Context, eventID uuid.UUID, selfieHash string) (models.FeedbackStats, error) {
	stats := models.FeedbackStats{}
	prefix := eventID.String() + "|"
	personal := eventID.String() + "|" + selfieHash + "|"
	for key := range r.feedback {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			stats.TotalFeedbackCount++
		}
		if len(key) > len(personal) && key[:len(personal)] == personal {
			stats.PersonalFeedbackCount++
		}
	}
	return stats, nil
}

type fakeVectors struct {
	vecs map[string][]float32
}

func (f *fakeVectors) GetByIDs(ctx context.Context, eventID uuid.UUID, ids []string) (map[string][]float32, error) {
	out := make(map[string][]float32)
	for _, id := range ids {
		if v, ok := f.vecs[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func TestRecordFeedback_FirstRejectionCreatesReputation(t *testing.T) {
	repo := newFakeRepo()
	store := NewStore(repo, &fakeVectors{})
	eventID := uuid.New()

	err := store.RecordFeedback(context.Background(), &models.Feedback{
		EventID:             eventID,
		ImageID:             uuid.New(),
		SelfieHash:          "hash-1",
		RejectedEmbeddingID: "emb-1",
	})
	require.NoError(t, err)

	rep := repo.reputations["emb-1"]
	require.NotNil(t, rep)
	require.Equal(t, 1, rep.TimesShown, "a rejection implies at least one impression")
	require.Equal(t, 1, rep.TimesRejected)
	require.Equal(t, 1.0, rep.RejectionRate)
	require.Negative(t, rep.ScorePenalty)
}

func TestRecordFeedback_Idempotent(t *testing.T) {
	repo := newFakeRepo()
	store := NewStore(repo, &fakeVectors{})
	eventID := uuid.New()

	fb := func() *models.Feedback {
		return &models.Feedback{
			EventID:             eventID,
			ImageID:             uuid.New(),
			SelfieHash:          "hash-1",
			RejectedEmbeddingID: "emb-1",
		}
	}

	require.NoError(t, store.RecordFeedback(context.Background(), fb()))
	require.NoError(t, store.RecordFeedback(context.Background(), fb()))

	require.Equal(t, 1, repo.reputations["emb-1"].TimesRejected, "duplicate feedback counts once")
	require.Len(t, repo.feedback, 1)
}

func TestIncrementShown_CreatesAndBumps(t *testing.T) {
	repo := newFakeRepo()
	store := NewStore(repo, &fakeVectors{})
	eventID := uuid.New()

	require.NoError(t, store.IncrementShown(context.Background(), eventID, []string{"emb-1", "emb-2"}))
	require.NoError(t, store.IncrementShown(context.Background(), eventID, []string{"emb-1"}))

	require.Equal(t, 2, repo.reputations["emb-1"].TimesShown)
	require.Equal(t, 1, repo.reputations["emb-2"].TimesShown)
	require.Zero(t, repo.reputations["emb-1"].ScorePenalty, "never-rejected embeddings carry no penalty")
}

func TestIncrementShown_ShrinksPenaltyRate(t *testing.T) {
	repo := newFakeRepo()
	store := NewStore(repo, &fakeVectors{})
	eventID := uuid.New()
	ctx := context.Background()

	require.NoError(t, store.RecordFeedback(ctx, &models.Feedback{
		EventID: eventID, ImageID: uuid.New(), SelfieHash: "h", RejectedEmbeddingID: "emb-1",
	}))
	afterReject := repo.reputations["emb-1"].RejectionRate

	for i := 0; i < 9; i++ {
		require.NoError(t, store.IncrementShown(ctx, eventID, []string{"emb-1"}))
	}

	require.Less(t, repo.reputations["emb-1"].RejectionRate, afterReject,
		"impressions without rejections dilute the rate")
}

func TestHardNegatives_SkipsMissingVectors(t *testing.T) {
	repo := newFakeRepo()
	vectors := &fakeVectors{vecs: map[string][]float32{"emb-1": {1, 0}}}
	store := NewStore(repo, vectors)
	eventID := uuid.New()
	ctx := context.Background()

	require.NoError(t, store.RecordFeedback(ctx, &models.Feedback{
		EventID: eventID, ImageID: uuid.New(), SelfieHash: "h", RejectedEmbeddingID: "emb-1",
	}))
	require.NoError(t, store.RecordFeedback(ctx, &models.Feedback{
		EventID: eventID, ImageID: uuid.New(), SelfieHash: "h", RejectedEmbeddingID: "emb-gone",
	}))

	negs, err := store.HardNegatives(ctx, eventID, "h")
	require.NoError(t, err)
	require.Len(t, negs, 1, "embeddings deleted from the store are skipped")
}

func TestGlobalHardNegatives_ThresholdGating(t *testing.T) {
	repo := newFakeRepo()
	vectors := &fakeVectors{vecs: map[string][]float32{"confuser": {1, 0}, "fresh": {0, 1}}}
	store := NewStore(repo, vectors)
	eventID := uuid.New()
	ctx := context.Background()

	// confuser: shown 4, rejected 2 -> rate 0.5, eligible
	repo.reputations["confuser"] = &models.ReputationScore{
		EventID: eventID, EmbeddingID: "confuser", TimesShown: 4, TimesRejected: 2, RejectionRate: 0.5,
	}
	// fresh: shown 2, rejected 1 -> rate 0.5 but too few impressions
	repo.reputations["fresh"] = &models.ReputationScore{
		EventID: eventID, EmbeddingID: "fresh", TimesShown: 2, TimesRejected: 1, RejectionRate: 0.5,
	}

	negs, err := store.GlobalHardNegatives(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, negs, 1, "only well-sampled confusers qualify")
}

func TestReputationPenalties_OnlyNonZero(t *testing.T) {
	repo := newFakeRepo()
	store := NewStore(repo, &fakeVectors{})
	eventID := uuid.New()

	repo.reputations["bad"] = &models.ReputationScore{
		EventID: eventID, EmbeddingID: "bad", TimesShown: 10, TimesRejected: 5, ScorePenalty: -0.03,
	}
	repo.reputations["clean"] = &models.ReputationScore{
		EventID: eventID, EmbeddingID: "clean", TimesShown: 10,
	}

	penalties, err := store.ReputationPenalties(context.Background(), eventID, []string{"bad", "clean", "unknown"})
	require.NoError(t, err)
	require.Len(t, penalties, 1)
	require.InDelta(t, -0.03, penalties["bad"], 1e-9)
}

func TestStats(t *testing.T) {
	repo := newFakeRepo()
	store := NewStore(repo, &fakeVectors{})
	eventID := uuid.New()
	ctx := context.Background()

	require.NoError(t, store.RecordFeedback(ctx, &models.Feedback{
		EventID: eventID, ImageID: uuid.New(), SelfieHash: "mine", RejectedEmbeddingID: "e1",
	}))
	require.NoError(t, store.RecordFeedback(ctx, &models.Feedback{
		EventID: eventID, ImageID: uuid.New(), SelfieHash: "theirs", RejectedEmbeddingID: "e2",
	}))

	stats, err := store.Stats(ctx, eventID, "mine")
	require.NoError(t, err)
	require.Equal(t, 1, stats.PersonalFeedbackCount)
	require.Equal(t, 2, stats.TotalFeedbackCount)
}
