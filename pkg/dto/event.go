package dto

import (
	"github.com/google/uuid"
)

type CreateEventRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type EventResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   string    `json:"created_at"`
}

type ImageResponse struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	ObjectKey string    `json:"object_key"`
	ThumbKey  string    `json:"thumb_key,omitempty"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	SceneType string    `json:"scene_type,omitempty"`
	FaceCount int       `json:"face_count"`
	CreatedAt string    `json:"created_at"`
}

type JobResponse struct {
	JobID     uuid.UUID `json:"job_id"`
	EventID   uuid.UUID `json:"event_id"`
	Status    string    `json:"status"`
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Failed    int       `json:"failed"`
	Faces     int       `json:"faces"`
	Error     string    `json:"error,omitempty"`
}
