package models

import (
	"time"

	"github.com/google/uuid"
)

// Feedback is one "not this person" rejection from a searcher. At most one
// logical record exists per (event, selfie hash, rejected embedding).
type Feedback struct {
	ID                  uuid.UUID  `json:"id" db:"id"`
	EventID             uuid.UUID  `json:"event_id" db:"event_id"`
	ImageID             uuid.UUID  `json:"image_id" db:"image_id"`
	SelfieHash          string     `json:"selfie_hash" db:"selfie_hash"`
	RejectedEmbeddingID string     `json:"rejected_embedding_id" db:"rejected_embedding_id"`
	RejectedFaceID      *uuid.UUID `json:"rejected_face_id,omitempty" db:"rejected_face_id"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
}

// ReputationScore tracks how often an embedding is surfaced and rejected
// across all searchers of an event. ScorePenalty is derived from the counts
// and recomputed on every mutation, never stored independently.
type ReputationScore struct {
	EventID       uuid.UUID `json:"event_id" db:"event_id"`
	EmbeddingID   string    `json:"embedding_id" db:"embedding_id"`
	TimesShown    int       `json:"times_shown" db:"times_shown"`
	TimesRejected int       `json:"times_rejected" db:"times_rejected"`
	RejectionRate float64   `json:"rejection_rate" db:"rejection_rate"`
	ScorePenalty  float64   `json:"score_penalty" db:"score_penalty"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// FeedbackStats summarizes feedback volume for one searcher and event-wide.
type FeedbackStats struct {
	PersonalFeedbackCount int `json:"personal_feedback_count"`
	TotalFeedbackCount    int `json:"total_feedback_count"`
}
