package dto

import (
	"github.com/google/uuid"
)

// FaceDetection mirrors the external detection pipeline's per-face output.
type FaceDetection struct {
	Embedding      []float32 `json:"embedding" binding:"required"`
	BBox           BBox      `json:"bbox"`
	DetectionScore float64   `json:"detection_score"`
	Age            int       `json:"age"`
	Gender         string    `json:"gender"`
	Yaw            float64   `json:"yaw"`
	Pitch          float64   `json:"pitch"`
	Roll           float64   `json:"roll"`
	Quality        float64   `json:"quality"`
	Prominence     float64   `json:"prominence"`
	CenterDist     float64   `json:"center_dist"`
	Sharpness      float64   `json:"sharpness"`
}

type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// SearchRequest carries the detections extracted from the query selfie, plus
// optional text and filters. Faces may be empty for a pure text search, but
// then QueryText is required.
type SearchRequest struct {
	Faces            []FaceDetection `json:"faces"`
	QueryText        string          `json:"query_text"`
	Filter           map[string]any  `json:"filter,omitempty"`
	Threshold        float64         `json:"threshold"`
	MaxResults       int             `json:"max_results"`
	ExcludedImageIDs []uuid.UUID     `json:"excluded_image_ids,omitempty"`
}

type MatchDetails struct {
	VectorSimilarity  float64 `json:"vector_similarity"`
	LexicalScore      float64 `json:"lexical_score"`
	QualityAdjustment float64 `json:"quality_adjustment"`
	FeedbackPenalty   float64 `json:"feedback_penalty"`
	FaceQuality       float64 `json:"face_quality"`
	IsFrontal         bool    `json:"is_frontal"`
	Prominence        float64 `json:"prominence"`
	SceneType         string  `json:"scene_type,omitempty"`
}

type SearchResult struct {
	Image      ImageResponse `json:"image"`
	Similarity float64       `json:"similarity"`
	Details    MatchDetails  `json:"match_details"`
}

type SearchResponse struct {
	Results         []SearchResult `json:"results"`
	Total           int            `json:"total"`
	SelfieHash      string         `json:"selfie_hash,omitempty"`
	FeedbackApplied bool           `json:"feedback_applied"`
	FeedbackStats   FeedbackStats  `json:"feedback_stats"`
}
