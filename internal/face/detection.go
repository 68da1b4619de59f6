// Package face holds the detection-result value type and the attribute
// derivations the ranking pipeline needs. Detection is produced once by the
// external detector and travels through ingestion and search unchanged;
// attributes are never re-derived downstream.
package face

import (
	"math"
)

// BBox is a face bounding box in source-image pixel coordinates.
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (b BBox) Area() float64 {
	return b.W * b.H
}

// Detection is one detected face with its unit-normalized embedding and the
// structured attributes computed at detection time. Immutable by convention.
type Detection struct {
	Embedding      []float32 `json:"embedding"`
	BBox           BBox      `json:"bbox"`
	DetectionScore float64   `json:"detection_score"`
	Age            int       `json:"age"`
	Gender         string    `json:"gender"` // "M", "F" or ""
	Yaw            float64   `json:"yaw"`
	Pitch          float64   `json:"pitch"`
	Roll           float64   `json:"roll"`
	Quality        float64   `json:"quality"`    // [0,1]
	Prominence     float64   `json:"prominence"` // face area / image area, [0,1]
	CenterDist     float64   `json:"center_dist"`
	Sharpness      float64   `json:"sharpness"`
}

// IsFrontal reports whether the face is roughly camera-facing.
func (d Detection) IsFrontal() bool {
	return math.Abs(d.Yaw) < 15 && math.Abs(d.Pitch) < 15
}

// SelectPrimary picks the face to use from a multi-face query image: the most
// prominent one by bounding-box area times detection confidence. Ties keep
// the earliest detection, which follows detector output order (left to right,
// top to bottom) and is stable across repeated calls.
func SelectPrimary(faces []Detection) (Detection, bool) {
	if len(faces) == 0 {
		return Detection{}, false
	}
	best := faces[0]
	bestScore := best.BBox.Area() * best.DetectionScore
	for _, f := range faces[1:] {
		if s := f.BBox.Area() * f.DetectionScore; s > bestScore {
			best = f
			bestScore = s
		}
	}
	return best, true
}

// AgeBracket maps an age to a coarse, filterable bracket.
func AgeBracket(age int) string {
	switch {
	case age < 13:
		return "child"
	case age < 20:
		return "teen"
	case age < 35:
		return "young_adult"
	case age < 55:
		return "adult"
	default:
		return "senior"
	}
}
