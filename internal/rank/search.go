// Package rank implements the four-stage hybrid search: broad vector recall,
// BM25 re-scoring, reciprocal-rank fusion with quality adjustment, and
// adaptive reranking from negative feedback.
package rank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facematch/internal/config"
	"github.com/your-org/facematch/internal/face"
	"github.com/your-org/facematch/internal/feedback"
	"github.com/your-org/facematch/internal/models"
	"github.com/your-org/facematch/internal/observability"
	"github.com/your-org/facematch/internal/vectorstore"
)

// ErrNoFaceDetected means the query image contained no usable face. It is a
// user-correctable input error, not a system failure.
var ErrNoFaceDetected = errors.New("rank: no face detected in query image")

// scoreEpsilon is the floor for feedback-adjusted scores. Scores never reach
// zero or go negative, and the floor survives response rounding.
const scoreEpsilon = 0.001

// recallCap bounds the stage-1 candidate pool regardless of the result cap.
const recallCap = 300

// VectorGateway is the slice of the vector store the pipeline needs.
type VectorGateway interface {
	Query(ctx context.Context, eventID uuid.UUID, vector []float32, n int, filter vectorstore.Filter) (vectorstore.QueryResult, error)
	GetByIDs(ctx context.Context, eventID uuid.UUID, ids []string) (map[string][]float32, error)
	AllEntries(ctx context.Context, eventID uuid.UUID) ([]string, []vectorstore.Metadata, error)
}

// LexicalScorer scores candidates against query text, or reports that no
// lexical signal is available (second return false).
type LexicalScorer interface {
	Score(ctx context.Context, eventID uuid.UUID, queryText string, candidateIDs []string) ([]float64, bool, error)
}

// FeedbackStore supplies negative-feedback signals and accrues impressions.
type FeedbackStore interface {
	HardNegatives(ctx context.Context, eventID uuid.UUID, selfieHash string) ([][]float32, error)
	GlobalHardNegatives(ctx context.Context, eventID uuid.UUID) ([][]float32, error)
	ReputationPenalties(ctx context.Context, eventID uuid.UUID, embeddingIDs []string) (map[string]float64, error)
	IncrementShown(ctx context.Context, eventID uuid.UUID, embeddingIDs []string) error
	Stats(ctx context.Context, eventID uuid.UUID, selfieHash string) (models.FeedbackStats, error)
}

// FaceLookup is the batched relational contract; no per-id round trips.
type FaceLookup interface {
	FacesByEmbeddingIDs(ctx context.Context, embeddingIDs []string) ([]models.Face, error)
	ImagesByIDs(ctx context.Context, imageIDs []uuid.UUID) ([]models.Image, error)
}

// Input describes one search. When Faces is empty and QueryText is set the
// pipeline runs in metadata-only mode; when both are empty the search fails
// with ErrNoFaceDetected.
type Input struct {
	EventID          uuid.UUID
	Faces            []face.Detection
	QueryText        string
	Filter           vectorstore.Filter
	Threshold        float64 // 0 means the configured default
	MaxResults       int     // 0 means the configured default
	ExcludedImageIDs []uuid.UUID
}

// MatchDetails is the per-result score breakdown kept for explainability.
type MatchDetails struct {
	VectorSimilarity  float64 `json:"vector_similarity"`
	LexicalScore      float64 `json:"lexical_score"`
	QualityAdjustment float64 `json:"quality_adjustment"`
	FeedbackPenalty   float64 `json:"feedback_penalty"`
	FaceQuality       float64 `json:"face_quality"`
	IsFrontal         bool    `json:"is_frontal"`
	Prominence        float64 `json:"prominence"`
	SceneType         string  `json:"scene_type"`
}

// Result is one ranked image.
type Result struct {
	Image      models.Image `json:"image"`
	Similarity float64      `json:"similarity"`
	Details    MatchDetails `json:"match_details"`
}

// Output is the full search response.
type Output struct {
	Results         []Result             `json:"results"`
	SelfieHash      string               `json:"selfie_hash,omitempty"`
	FeedbackApplied bool                 `json:"feedback_applied"`
	Stats           models.FeedbackStats `json:"feedback_stats"`
}

// candidate carries one embedding through the pipeline stages.
type candidate struct {
	id         string
	similarity float64
	meta       vectorstore.Metadata
	vectorRank int
	lexScore   float64
	lexRank    int
	composite  float64
	fbPenalty  float64
	qualityAdj float64
}

type Searcher struct {
	vectors  VectorGateway
	lexical  LexicalScorer
	feedback FeedbackStore
	faces    FaceLookup
	cfg      config.SearchConfig
}

func NewSearcher(vectors VectorGateway, lex LexicalScorer, fb FeedbackStore, faces FaceLookup, cfg config.SearchConfig) *Searcher {
	return &Searcher{vectors: vectors, lexical: lex, feedback: fb, faces: faces, cfg: cfg}
}

// Search runs the full pipeline. It respects the context deadline: callers
// set the configured time budget and get a timeout error instead of a hang.
func (s *Searcher) Search(ctx context.Context, in Input) (*Output, error) {
	start := time.Now()
	defer func() {
		observability.SearchDuration.Observe(time.Since(start).Seconds())
	}()
	observability.SearchesTotal.Inc()

	if len(in.Faces) == 0 {
		if in.QueryText != "" {
			return s.searchMetadataOnly(ctx, in)
		}
		return nil, ErrNoFaceDetected
	}

	primary, _ := face.SelectPrimary(in.Faces)
	threshold := s.threshold(in.Threshold)
	maxResults := s.maxResults(in.MaxResults)
	selfieHash := feedback.SelfieHash(primary.Embedding)

	// Stage 1: broad vector recall with a relaxed threshold; re-ranking
	// filters later.
	cands, err := s.recall(ctx, in, primary, threshold, maxResults)
	if err != nil {
		return nil, err
	}

	stats, statsErr := s.feedback.Stats(ctx, in.EventID, selfieHash)
	if statsErr != nil {
		slog.Warn("feedback stats unavailable", "event_id", in.EventID, "error", statsErr)
	}

	if len(cands) == 0 {
		return &Output{Results: []Result{}, SelfieHash: selfieHash, Stats: stats}, nil
	}

	// Stage 2: lexical re-scoring against the combined query document.
	queryDoc := face.JoinTexts(face.DescriptorText(primary), in.QueryText)
	lexOK := s.rescoreLexical(ctx, in.EventID, queryDoc, cands)

	// Stage 3: rank fusion plus quality adjustment.
	s.fuse(cands, lexOK)

	// Stage 4: adaptive feedback reranking.
	applied, err := s.applyFeedback(ctx, in.EventID, selfieHash, cands)
	if err != nil {
		return nil, err
	}

	results, shownIDs, err := s.emit(ctx, in, cands, threshold, maxResults)
	if err != nil {
		return nil, err
	}

	if err := s.feedback.IncrementShown(ctx, in.EventID, shownIDs); err != nil {
		slog.Warn("increment shown failed", "event_id", in.EventID, "error", err)
	}
	observability.CandidatesSurfaced.Add(float64(len(shownIDs)))

	return &Output{
		Results:         results,
		SelfieHash:      selfieHash,
		FeedbackApplied: applied,
		Stats:           stats,
	}, nil
}

// recall queries the gateway with n = min(3×cap, 300) and threshold−0.20. A
// coarse equality prefilter that starves the pool below the minimum viable
// count is dropped and the query re-issued unfiltered: prefilters must never
// let false negatives dominate recall.
func (s *Searcher) recall(ctx context.Context, in Input, primary face.Detection, threshold float64, maxResults int) ([]*candidate, error) {
	recallThreshold := threshold - 0.20
	if recallThreshold < 0.3 {
		recallThreshold = 0.3
	}
	n := 3 * maxResults
	if n > recallCap {
		n = recallCap
	}

	filter := in.Filter.MergeGender(primary.Gender)

	res, err := s.vectors.Query(ctx, in.EventID, primary.Embedding, n, filter)
	if err != nil {
		return nil, fmt.Errorf("vector recall: %w", err)
	}

	if len(filter) > 0 && len(res.IDs) < s.cfg.MinFilteredResults {
		slog.Debug("filtered recall below minimum, re-querying unfiltered",
			"event_id", in.EventID, "filtered_count", len(res.IDs))
		res, err = s.vectors.Query(ctx, in.EventID, primary.Embedding, n, nil)
		if err != nil {
			return nil, fmt.Errorf("unfiltered vector recall: %w", err)
		}
	}

	var cands []*candidate
	for i, id := range res.IDs {
		sim := clamp(1-res.Distances[i], 0, 1)
		if sim < recallThreshold {
			continue
		}
		cands = append(cands, &candidate{
			id:         id,
			similarity: sim,
			meta:       res.Metadatas[i],
			vectorRank: i,
		})
	}
	return cands, nil
}

// rescoreLexical attaches lexical scores and ranks. Returns false when no
// lexical signal is available; candidates then keep zero scores and Stage 3
// uses the vector-only composite. A scoring failure degrades the same way
// instead of failing the search.
func (s *Searcher) rescoreLexical(ctx context.Context, eventID uuid.UUID, queryDoc string, cands []*candidate) bool {
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.id
	}

	scores, ok, err := s.lexical.Score(ctx, eventID, queryDoc, ids)
	if err != nil {
		slog.Warn("lexical scoring failed, using vector-only composite",
			"event_id", eventID, "error", err)
		return false
	}
	if !ok {
		return false
	}

	for i, c := range cands {
		c.lexScore = scores[i]
	}

	order := make([]*candidate, len(cands))
	copy(order, cands)
	sort.SliceStable(order, func(i, j int) bool { return order[i].lexScore > order[j].lexScore })
	for rank, c := range order {
		c.lexRank = rank
	}
	return true
}

// fuse computes the composite score. With lexical signal present the RRF of
// the vector and lexical orderings plus the quality adjustment act as
// tie-breakers around the dominant vector similarity; without it the quality
// adjustment alone modulates similarity. The embedding remains the primary
// identity signal, so vector similarity carries most of the weight.
func (s *Searcher) fuse(cands []*candidate, lexOK bool) {
	k := s.cfg.RRFConstant
	rrfMax := s.cfg.VectorWeight/k + s.cfg.LexicalWeight/k

	for _, c := range cands {
		c.qualityAdj = qualityAdjustment(c.meta)
		qNorm := (c.qualityAdj + 1) / 2

		if lexOK {
			rrf := s.cfg.VectorWeight/(k+float64(c.vectorRank)) +
				s.cfg.LexicalWeight/(k+float64(c.lexRank))
			rrfNorm := rrf / rrfMax
			c.composite = clamp(0.80*c.similarity+0.12*rrfNorm+0.08*qNorm, 0, 1)
		} else {
			c.composite = clamp(0.90*c.similarity+0.10*qNorm, 0, 1)
		}
	}
}

// applyFeedback folds in the three penalty sources: this searcher's hard
// negatives, event-wide confusers, and precomputed reputation penalties. All
// are additive, then the score is floored at a small positive epsilon.
// Candidates whose stored embedding is missing simply skip similarity
// penalties; they are never dropped from results for that.
func (s *Searcher) applyFeedback(ctx context.Context, eventID uuid.UUID, selfieHash string, cands []*candidate) (bool, error) {
	personal, err := s.feedback.HardNegatives(ctx, eventID, selfieHash)
	if err != nil {
		return false, fmt.Errorf("personal hard negatives: %w", err)
	}
	global, err := s.feedback.GlobalHardNegatives(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("global hard negatives: %w", err)
	}

	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.id
	}
	repPenalties, err := s.feedback.ReputationPenalties(ctx, eventID, ids)
	if err != nil {
		return false, fmt.Errorf("reputation penalties: %w", err)
	}

	applied := len(personal) > 0 || len(global) > 0
	if !applied && len(repPenalties) == 0 {
		return false, nil
	}

	var embeddings map[string][]float32
	if applied {
		embeddings, err = s.vectors.GetByIDs(ctx, eventID, ids)
		if err != nil {
			return false, fmt.Errorf("candidate embeddings: %w", err)
		}
	}

	for _, c := range cands {
		penalty := 0.0
		if emb, ok := embeddings[c.id]; ok {
			penalty += feedback.HardNegativePenalty(emb, personal, s.cfg.PersonalNegStrength)
			penalty += feedback.HardNegativePenalty(emb, global, s.cfg.GlobalNegStrength)
		}
		penalty += repPenalties[c.id]

		c.fbPenalty = penalty
		c.composite += penalty
		if c.composite < scoreEpsilon {
			c.composite = scoreEpsilon
		}
	}
	return applied, nil
}

// emit deduplicates by owning image (best face wins), drops excluded images,
// filters by the caller threshold, sorts and truncates. It returns the final
// results and the embedding ids whose impressions must be counted.
func (s *Searcher) emit(ctx context.Context, in Input, cands []*candidate, threshold float64, maxResults int) ([]Result, []string, error) {
	ids := make([]string, len(cands))
	byID := make(map[string]*candidate, len(cands))
	for i, c := range cands {
		ids[i] = c.id
		byID[c.id] = c
	}

	faces, err := s.faces.FacesByEmbeddingIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("faces by embedding ids: %w", err)
	}

	excluded := make(map[uuid.UUID]bool, len(in.ExcludedImageIDs))
	for _, id := range in.ExcludedImageIDs {
		excluded[id] = true
	}

	type best struct {
		cand *candidate
		face models.Face
	}
	bestPerImage := make(map[uuid.UUID]best)
	for _, f := range faces {
		c, ok := byID[f.EmbeddingID]
		if !ok {
			continue
		}
		if excluded[f.ImageID] {
			continue
		}
		cur, ok := bestPerImage[f.ImageID]
		if !ok || c.composite > cur.cand.composite {
			bestPerImage[f.ImageID] = best{cand: c, face: f}
		}
	}

	shownIDs := make([]string, 0, len(bestPerImage))
	type scoredImage struct {
		imageID uuid.UUID
		b       best
	}
	var ranked []scoredImage
	for imageID, b := range bestPerImage {
		shownIDs = append(shownIDs, b.cand.id)
		if b.cand.similarity < threshold {
			continue
		}
		ranked = append(ranked, scoredImage{imageID: imageID, b: b})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].b.cand.composite != ranked[j].b.cand.composite {
			return ranked[i].b.cand.composite > ranked[j].b.cand.composite
		}
		return ranked[i].b.cand.id < ranked[j].b.cand.id
	})
	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}

	imageIDs := make([]uuid.UUID, len(ranked))
	for i, r := range ranked {
		imageIDs[i] = r.imageID
	}
	images, err := s.faces.ImagesByIDs(ctx, imageIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("images by ids: %w", err)
	}
	imageByID := make(map[uuid.UUID]models.Image, len(images))
	for _, img := range images {
		imageByID[img.ID] = img
	}

	results := make([]Result, 0, len(ranked))
	for _, r := range ranked {
		img, ok := imageByID[r.imageID]
		if !ok {
			continue
		}
		c := r.b.cand
		results = append(results, Result{
			Image:      img,
			Similarity: round4(c.composite),
			Details: MatchDetails{
				VectorSimilarity:  round4(c.similarity),
				LexicalScore:      round4(c.lexScore),
				QualityAdjustment: round4(c.qualityAdj),
				FeedbackPenalty:   round4(c.fbPenalty),
				FaceQuality:       c.meta.FaceQuality,
				IsFrontal:         c.meta.IsFrontal,
				Prominence:        c.meta.Prominence,
				SceneType:         c.meta.SceneType,
			},
		})
	}
	return results, shownIDs, nil
}

// searchMetadataOnly handles pure text queries: score the whole corpus
// lexically, apply equality filters, deduplicate by image, rank by lexical
// score. Vector recall and feedback reranking do not apply.
func (s *Searcher) searchMetadataOnly(ctx context.Context, in Input) (*Output, error) {
	maxResults := s.maxResults(in.MaxResults)

	ids, metas, err := s.vectors.AllEntries(ctx, in.EventID)
	if err != nil {
		return nil, fmt.Errorf("list collection: %w", err)
	}
	if len(ids) == 0 {
		return &Output{Results: []Result{}}, nil
	}

	metaByID := make(map[string]vectorstore.Metadata, len(ids))
	var filtered []string
	for i, id := range ids {
		if !metas[i].Matches(in.Filter) {
			continue
		}
		metaByID[id] = metas[i]
		filtered = append(filtered, id)
	}
	if len(filtered) == 0 {
		return &Output{Results: []Result{}}, nil
	}

	scores, ok, err := s.lexical.Score(ctx, in.EventID, in.QueryText, filtered)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	if !ok {
		return &Output{Results: []Result{}}, nil
	}

	cands := make([]*candidate, 0, len(filtered))
	for i, id := range filtered {
		if scores[i] <= 0 {
			continue
		}
		cands = append(cands, &candidate{
			id:        id,
			meta:      metaByID[id],
			lexScore:  scores[i],
			composite: scores[i],
		})
	}

	results, _, err := s.emit(ctx, in, cands, 0, maxResults)
	if err != nil {
		return nil, err
	}
	return &Output{Results: results}, nil
}

func (s *Searcher) threshold(v float64) float64 {
	if v == 0 {
		v = s.cfg.SimilarityThreshold
	}
	return clamp(v, 0.3, 0.99)
}

func (s *Searcher) maxResults(v int) int {
	if v <= 0 {
		return s.cfg.MaxResults
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
