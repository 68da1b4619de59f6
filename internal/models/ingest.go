package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IngestTask is the message published to NATS for one uploaded batch. The
// detection payload itself lives in MinIO under PayloadRef; the task carries
// only the reference so large batches stay out of the message bus.
type IngestTask struct {
	JobID      uuid.UUID `json:"job_id"`
	EventID    uuid.UUID `json:"event_id"`
	PayloadRef string    `json:"payload_ref"`
	ImageCount int       `json:"image_count"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// JobProgress is published after each image of a batch is processed and at
// batch completion. The API broadcasts it over WebSocket.
type JobProgress struct {
	JobID     uuid.UUID `json:"job_id"`
	EventID   uuid.UUID `json:"event_id"`
	Status    JobStatus `json:"status"`
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Failed    int       `json:"failed"`
	Faces     int       `json:"faces"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
