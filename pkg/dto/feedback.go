package dto

import (
	"github.com/google/uuid"
)

// FeedbackRequest marks one search result as "not this person". SelfieHash is
// the opaque searcher identity returned by the search endpoint.
type FeedbackRequest struct {
	SelfieHash          string     `json:"selfie_hash" binding:"required"`
	ImageID             uuid.UUID  `json:"image_id" binding:"required"`
	RejectedEmbeddingID string     `json:"rejected_embedding_id" binding:"required"`
	RejectedFaceID      *uuid.UUID `json:"rejected_face_id,omitempty"`
}

type FeedbackResponse struct {
	Status string `json:"status"`
}

type FeedbackStats struct {
	PersonalFeedbackCount int `json:"personal_feedback_count"`
	TotalFeedbackCount    int `json:"total_feedback_count"`
}
