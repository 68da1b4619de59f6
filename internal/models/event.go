package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is a photo gallery (a wedding, a conference day) that owns a pool of
// uploaded images and one logical vector collection.
type Event struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Image is one uploaded photo within an event.
type Image struct {
	ID         uuid.UUID `json:"id" db:"id"`
	EventID    uuid.UUID `json:"event_id" db:"event_id"`
	ObjectKey  string    `json:"object_key" db:"object_key"`
	ThumbKey   string    `json:"thumb_key" db:"thumb_key"`
	Width      int       `json:"width" db:"width"`
	Height     int       `json:"height" db:"height"`
	SceneType  string    `json:"scene_type" db:"scene_type"`
	Brightness float64   `json:"brightness" db:"brightness"`
	Sharpness  float64   `json:"sharpness" db:"sharpness"`
	FaceCount  int       `json:"face_count" db:"face_count"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
