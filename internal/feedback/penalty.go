package feedback

const (
	// hardNegThreshold is the cosine similarity above which a candidate is
	// considered close enough to a rejected face to penalize.
	hardNegThreshold = 0.6

	// maxReputationPenalty caps the precomputed per-embedding penalty.
	maxReputationPenalty = 0.10

	// confidenceHalfSample tunes how fast penalty confidence approaches 1
	// with impression count: confidence = shown / (shown + half).
	confidenceHalfSample = 5.0

	// Global confuser selection bounds.
	confuserMinRate  = 0.3
	confuserMinShown = 3
)

// CosineSimilarity assumes unit-length inputs, so the dot product is the
// cosine. Mismatched lengths score zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// HardNegativePenalty returns the penalty (≤ 0) a candidate incurs from a set
// of rejected embeddings. Similarity above the 0.6 threshold scales linearly
// from 0 up to -strength at similarity 1.0. Only the strongest contribution
// is kept: penalties within one negative set are not summed.
func HardNegativePenalty(candidate []float32, negatives [][]float32, strength float64) float64 {
	var worst float64
	for _, neg := range negatives {
		sim := CosineSimilarity(candidate, neg)
		if sim <= hardNegThreshold {
			continue
		}
		p := -strength * (sim - hardNegThreshold) / (1.0 - hardNegThreshold)
		if p < worst {
			worst = p
		}
	}
	return worst
}

// ReputationPenalty derives the stored score_penalty from the raw counts:
// a monotone function of rejection rate scaled by a sample-size confidence
// term, so a high rejection rate backed by many impressions always outweighs
// the same rate estimated from few.
func ReputationPenalty(timesShown, timesRejected int) float64 {
	if timesShown <= 0 || timesRejected <= 0 {
		return 0
	}
	rate := float64(timesRejected) / float64(timesShown)
	if rate > 1 {
		rate = 1
	}
	confidence := float64(timesShown) / (float64(timesShown) + confidenceHalfSample)
	return -maxReputationPenalty * rate * confidence
}

// RejectionRate returns times_rejected/times_shown, zero when nothing was shown.
func RejectionRate(timesShown, timesRejected int) float64 {
	if timesShown <= 0 {
		return 0
	}
	return float64(timesRejected) / float64(timesShown)
}
