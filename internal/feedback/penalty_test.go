package feedback

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelfieHash(t *testing.T) {
	a := []float32{0.1, 0.2, 0.3}
	b := []float32{0.1, 0.2, 0.3}
	c := []float32{0.1, 0.2, 0.30001}

	require.Equal(t, SelfieHash(a), SelfieHash(b), "identical embeddings collide")
	require.NotEqual(t, SelfieHash(a), SelfieHash(c), "any bit difference changes the hash")
	require.Len(t, SelfieHash(a), 64)
}

func TestCosineSimilarity(t *testing.T) {
	require.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	require.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	require.Zero(t, CosineSimilarity([]float32{1, 0}, []float32{1}), "mismatched lengths score zero")
}

func TestHardNegativePenalty_BelowThresholdIsFree(t *testing.T) {
	candidate := []float32{1, 0}
	negatives := [][]float32{{0.5, 0.866}} // similarity 0.5

	require.Zero(t, HardNegativePenalty(candidate, negatives, 0.15))
}

func TestHardNegativePenalty_ScalesWithSimilarity(t *testing.T) {
	candidate := []float32{1, 0}

	// similarity 1.0: full strength
	p := HardNegativePenalty(candidate, [][]float32{{1, 0}}, 0.15)
	require.InDelta(t, -0.15, p, 1e-9)

	// similarity 0.8: halfway between threshold and 1.0
	p = HardNegativePenalty(candidate, [][]float32{{0.8, 0.6}}, 0.15)
	require.InDelta(t, -0.075, p, 1e-9)
}

func TestHardNegativePenalty_StrongestOnly(t *testing.T) {
	candidate := []float32{1, 0}
	negatives := [][]float32{
		{0.8, 0.6}, // penalty -0.075
		{1, 0},     // penalty -0.15
		{0.7, 0.714}, // weaker
	}

	p := HardNegativePenalty(candidate, negatives, 0.15)
	require.InDelta(t, -0.15, p, 1e-6, "penalties within one set never sum")
}

func TestReputationPenalty_ZeroCases(t *testing.T) {
	require.Zero(t, ReputationPenalty(0, 0))
	require.Zero(t, ReputationPenalty(10, 0))
	require.Zero(t, ReputationPenalty(0, 3))
}

func TestReputationPenalty_ConfidenceGrowsWithSample(t *testing.T) {
	// Same 50% rejection rate, different sample sizes: the larger sample
	// must carry the larger penalty.
	small := ReputationPenalty(2, 1)
	large := ReputationPenalty(10, 5)

	require.Less(t, large, small, "more impressions at the same rate means a stronger penalty")
	require.Negative(t, small)
	require.Negative(t, large)
}

func TestReputationPenalty_Bounded(t *testing.T) {
	// Even a 100% rejection rate with huge volume stays within the cap.
	p := ReputationPenalty(1000, 1000)
	require.GreaterOrEqual(t, p, -0.10)
	require.Less(t, p, -0.09)
}

func TestRejectionRate(t *testing.T) {
	require.Zero(t, RejectionRate(0, 5))
	require.InDelta(t, 0.5, RejectionRate(10, 5), 1e-9)
}
