// Package ingest drains batch tasks from the work queue and writes each
// image's relational rows and vector entries. Detection already happened in
// the external pipeline; the staged payload carries finished embeddings and
// attributes.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/facematch/internal/config"
	"github.com/your-org/facematch/internal/face"
	"github.com/your-org/facematch/internal/models"
	"github.com/your-org/facematch/internal/observability"
	"github.com/your-org/facematch/internal/queue"
	"github.com/your-org/facematch/internal/storage"
	"github.com/your-org/facematch/internal/vectorstore"
)

// ImagePayload is one image's slice of the staged batch payload.
type ImagePayload struct {
	ObjectKey  string           `json:"object_key"`
	ThumbKey   string           `json:"thumb_key"`
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	SceneType  string           `json:"scene_type"`
	Brightness float64          `json:"brightness"`
	Faces      []face.Detection `json:"faces"`
}

// BatchPayload is the JSON document staged in object storage per job.
type BatchPayload struct {
	Images []ImagePayload `json:"images"`
}

type Processor struct {
	store    *storage.PostgresStore
	objects  *storage.MinIOStore
	vectors  *vectorstore.Store
	producer *queue.Producer
	cfg      config.IngestConfig
}

func NewProcessor(store *storage.PostgresStore, objects *storage.MinIOStore, vectors *vectorstore.Store, producer *queue.Producer, cfg config.IngestConfig) *Processor {
	return &Processor{store: store, objects: objects, vectors: vectors, producer: producer, cfg: cfg}
}

// HandleTask processes one queued batch. Each image is atomic: its relational
// rows and vector entries land together or not at all. A failed image never
// fails the batch; the job fails only when every image does.
func (p *Processor) HandleTask(ctx context.Context, msg jetstream.Msg) error {
	var task models.IngestTask
	if err := json.Unmarshal(msg.Data(), &task); err != nil {
		return fmt.Errorf("unmarshal ingest task: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.TaskTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		observability.IngestDuration.Observe(time.Since(start).Seconds())
	}()

	data, err := p.objects.GetObject(ctx, task.PayloadRef)
	if err != nil {
		p.publishProgress(ctx, models.JobProgress{
			JobID: task.JobID, EventID: task.EventID, Status: models.JobStatusFailed,
			Total: task.ImageCount, Error: "payload unavailable",
		})
		return fmt.Errorf("load payload %s: %w", task.PayloadRef, err)
	}

	var payload BatchPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		p.publishProgress(ctx, models.JobProgress{
			JobID: task.JobID, EventID: task.EventID, Status: models.JobStatusFailed,
			Total: task.ImageCount, Error: "payload malformed",
		})
		return fmt.Errorf("unmarshal payload %s: %w", task.PayloadRef, err)
	}

	slog.Info("ingest batch started",
		"job_id", task.JobID, "event_id", task.EventID, "images", len(payload.Images))

	progress := models.JobProgress{
		JobID:   task.JobID,
		EventID: task.EventID,
		Status:  models.JobStatusRunning,
		Total:   len(payload.Images),
	}

	for _, img := range payload.Images {
		faces, err := p.processImage(ctx, task.EventID, img)
		if err != nil {
			slog.Error("ingest image failed",
				"job_id", task.JobID, "object_key", img.ObjectKey, "error", err)
			observability.ImagesIngested.WithLabelValues("failed").Inc()
			progress.Failed++
		} else {
			observability.ImagesIngested.WithLabelValues("ok").Inc()
			observability.FacesIndexed.Add(float64(faces))
			progress.Processed++
			progress.Faces += faces
		}
		p.publishProgress(ctx, progress)
	}

	if progress.Failed == progress.Total && progress.Total > 0 {
		progress.Status = models.JobStatusFailed
		progress.Error = "all images failed"
	} else {
		progress.Status = models.JobStatusCompleted
	}
	p.publishProgress(ctx, progress)

	// The staged payload is consumed; originals and thumbnails stay.
	if err := p.objects.DeleteObject(ctx, task.PayloadRef); err != nil {
		slog.Warn("delete staged payload failed", "payload_ref", task.PayloadRef, "error", err)
	}

	slog.Info("ingest batch finished",
		"job_id", task.JobID, "processed", progress.Processed, "failed", progress.Failed,
		"faces", progress.Faces, "status", progress.Status)
	return nil
}

// processImage writes one image's rows and embeddings. The relational side
// commits in one transaction; vector writes happen first so a relational
// failure can compensate by deleting them, never the other way around.
func (p *Processor) processImage(ctx context.Context, eventID uuid.UUID, payload ImagePayload) (int, error) {
	img := &models.Image{
		ID:         uuid.New(),
		EventID:    eventID,
		ObjectKey:  payload.ObjectKey,
		ThumbKey:   payload.ThumbKey,
		Width:      payload.Width,
		Height:     payload.Height,
		SceneType:  payload.SceneType,
		Brightness: payload.Brightness,
		Sharpness:  imageSharpness(payload.Faces),
		FaceCount:  len(payload.Faces),
	}
	imageText := face.ImageText(payload.SceneType, payload.Brightness, img.Sharpness, payload.Width, payload.Height)

	embeddingIDs := make([]string, 0, len(payload.Faces))
	facesRows := make([]*models.Face, 0, len(payload.Faces))

	for _, d := range payload.Faces {
		embeddingID := uuid.New().String()

		meta := vectorstore.Metadata{
			ImageID:     img.ID.String(),
			Age:         d.Age,
			AgeBracket:  face.AgeBracket(d.Age),
			Gender:      d.Gender,
			FaceQuality: d.Quality,
			IsFrontal:   d.IsFrontal(),
			Prominence:  d.Prominence,
			CenterDist:  d.CenterDist,
			AbsYaw:      abs(d.Yaw),
			Brightness:  payload.Brightness,
			Sharpness:   d.Sharpness,
			SceneType:   payload.SceneType,
		}
		document := face.JoinTexts(face.DescriptorText(d), imageText)

		if err := p.vectors.Add(ctx, eventID, embeddingID, d.Embedding, meta, document); err != nil {
			p.compensateVectors(eventID, embeddingIDs)
			return 0, fmt.Errorf("add embedding: %w", err)
		}
		embeddingIDs = append(embeddingIDs, embeddingID)

		facesRows = append(facesRows, &models.Face{
			ID:             uuid.New(),
			ImageID:        img.ID,
			EmbeddingID:    embeddingID,
			BBoxX:          d.BBox.X,
			BBoxY:          d.BBox.Y,
			BBoxW:          d.BBox.W,
			BBoxH:          d.BBox.H,
			DetectionScore: d.DetectionScore,
			Age:            d.Age,
			Gender:         d.Gender,
			Quality:        d.Quality,
			Yaw:            d.Yaw,
			Pitch:          d.Pitch,
			Roll:           d.Roll,
			Prominence:     d.Prominence,
			CenterDist:     d.CenterDist,
			IsFrontal:      d.IsFrontal(),
			MetadataText:   document,
		})
	}

	tx, err := p.store.Begin(ctx)
	if err != nil {
		p.compensateVectors(eventID, embeddingIDs)
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := p.store.InsertImageTx(ctx, tx, img); err != nil {
		p.compensateVectors(eventID, embeddingIDs)
		return 0, err
	}
	for _, f := range facesRows {
		if err := p.store.InsertFaceTx(ctx, tx, f); err != nil {
			p.compensateVectors(eventID, embeddingIDs)
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		p.compensateVectors(eventID, embeddingIDs)
		return 0, fmt.Errorf("commit: %w", err)
	}

	return len(payload.Faces), nil
}

// compensateVectors removes already-written embeddings after a relational
// failure so the weak reference never dangles from the vector side. Runs on a
// fresh context because the task context may already be dead.
func (p *Processor) compensateVectors(eventID uuid.UUID, embeddingIDs []string) {
	if len(embeddingIDs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.vectors.Delete(ctx, eventID, embeddingIDs); err != nil {
		slog.Error("compensating vector delete failed",
			"event_id", eventID, "count", len(embeddingIDs), "error", err)
	}
}

func (p *Processor) publishProgress(ctx context.Context, progress models.JobProgress) {
	progress.Timestamp = time.Now().UTC()
	if err := p.store.UpdateJob(ctx, progress); err != nil {
		slog.Warn("update job row failed", "job_id", progress.JobID, "error", err)
	}
	if err := p.producer.PublishProgress(ctx, progress); err != nil {
		slog.Warn("publish job progress failed", "job_id", progress.JobID, "error", err)
	}
}

// imageSharpness takes the sharpest face as the image-level sharpness signal.
func imageSharpness(faces []face.Detection) float64 {
	max := 0.0
	for _, d := range faces {
		if d.Sharpness > max {
			max = d.Sharpness
		}
	}
	return max
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
