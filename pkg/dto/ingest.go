package dto

import (
	"github.com/google/uuid"
)

// IngestImage is one pre-processed image in an upload batch: object storage
// keys plus the external pipeline's detections.
type IngestImage struct {
	ObjectKey  string          `json:"object_key" binding:"required"`
	ThumbKey   string          `json:"thumb_key"`
	Width      int             `json:"width" binding:"required"`
	Height     int             `json:"height" binding:"required"`
	SceneType  string          `json:"scene_type"`
	Brightness float64         `json:"brightness"`
	Faces      []FaceDetection `json:"faces"`
}

type IngestBatchRequest struct {
	Images []IngestImage `json:"images" binding:"required,min=1"`
}

type IngestBatchResponse struct {
	JobID   uuid.UUID `json:"job_id"`
	EventID uuid.UUID `json:"event_id"`
	Images  int       `json:"images"`
	Status  string    `json:"status"`
}
