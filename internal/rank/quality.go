package rank

import (
	"github.com/your-org/facematch/internal/vectorstore"
)

// qualityAdjustment folds face and image quality signals into one bounded
// value in [-1, 1]. Face quality dominates; the rest are fixed-size nudges.
// Zero-valued sharpness and prominence mean the signal was never computed and
// contribute nothing.
func qualityAdjustment(meta vectorstore.Metadata) float64 {
	adj := (meta.FaceQuality - 0.5) // ±0.5

	if meta.IsFrontal {
		adj += 0.15
	}

	if meta.Prominence > 0.03 {
		adj += 0.1
	} else if meta.Prominence > 0 && meta.Prominence < 0.005 {
		adj -= 0.1
	}

	if meta.Sharpness > 200 {
		adj += 0.05
	} else if meta.Sharpness > 0 && meta.Sharpness < 30 {
		adj -= 0.1
	}

	if meta.CenterDist < 0.25 {
		adj += 0.05
	}

	return clamp(adj, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
