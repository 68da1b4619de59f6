package models

import (
	"time"

	"github.com/google/uuid"
)

// Face is the relational descriptor of one detected face. It is created once
// at ingestion and immutable afterwards. EmbeddingID is a weak reference into
// the vector store: deleting one side never implies deleting the other, both
// deletions are explicit operations the caller performs together.
type Face struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ImageID        uuid.UUID `json:"image_id" db:"image_id"`
	EmbeddingID    string    `json:"embedding_id" db:"embedding_id"`
	BBoxX          float64   `json:"bbox_x" db:"bbox_x"`
	BBoxY          float64   `json:"bbox_y" db:"bbox_y"`
	BBoxW          float64   `json:"bbox_w" db:"bbox_w"`
	BBoxH          float64   `json:"bbox_h" db:"bbox_h"`
	DetectionScore float64   `json:"detection_score" db:"detection_score"`
	Age            int       `json:"age" db:"age"`
	Gender         string    `json:"gender" db:"gender"`
	Quality        float64   `json:"quality" db:"quality"`
	Yaw            float64   `json:"yaw" db:"yaw"`
	Pitch          float64   `json:"pitch" db:"pitch"`
	Roll           float64   `json:"roll" db:"roll"`
	Prominence     float64   `json:"prominence" db:"prominence"`
	CenterDist     float64   `json:"center_dist" db:"center_dist"`
	IsFrontal      bool      `json:"is_frontal" db:"is_frontal"`
	MetadataText   string    `json:"metadata_text" db:"metadata_text"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
