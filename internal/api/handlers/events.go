package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facematch/internal/ingest"
	"github.com/your-org/facematch/internal/models"
	"github.com/your-org/facematch/internal/queue"
	"github.com/your-org/facematch/internal/storage"
	"github.com/your-org/facematch/internal/vectorstore"
	"github.com/your-org/facematch/pkg/dto"
)

type EventHandler struct {
	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	vectors  *vectorstore.Store
	producer *queue.Producer
}

func NewEventHandler(db *storage.PostgresStore, minio *storage.MinIOStore, vectors *vectorstore.Store, producer *queue.Producer) *EventHandler {
	return &EventHandler{db: db, minio: minio, vectors: vectors, producer: producer}
}

func (h *EventHandler) Create(c *gin.Context) {
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.db.CreateEvent(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, eventResponse(event))
}

func (h *EventHandler) List(c *gin.Context) {
	events, err := h.db.ListEvents(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		resp = append(resp, eventResponse(&events[i]))
	}
	c.JSON(http.StatusOK, gin.H{"events": resp, "total": len(resp)})
}

func (h *EventHandler) Get(c *gin.Context) {
	event, ok := h.loadEvent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, eventResponse(event))
}

// Delete removes the event everywhere: relational rows cascade, the vector
// collection is dropped, stored photos and thumbnails are batch-deleted.
func (h *EventHandler) Delete(c *gin.Context) {
	event, ok := h.loadEvent(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	keys, err := h.db.ImageObjectKeys(ctx, event.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.vectors.DeleteCollection(ctx, event.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.db.DeleteEvent(ctx, event.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(keys) > 0 {
		if err := h.minio.DeleteObjects(ctx, keys); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *EventHandler) ListImages(c *gin.Context) {
	event, ok := h.loadEvent(c)
	if !ok {
		return
	}

	images, err := h.db.ListImages(c.Request.Context(), event.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.ImageResponse, 0, len(images))
	for _, img := range images {
		resp = append(resp, imageResponse(img))
	}
	c.JSON(http.StatusOK, gin.H{"images": resp, "total": len(resp)})
}

// IngestBatch stages the detection payload in object storage and enqueues one
// task for the workers. The request returns immediately with a job id the
// client can poll or watch over WebSocket.
func (h *EventHandler) IngestBatch(c *gin.Context) {
	event, ok := h.loadEvent(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var req dto.IngestBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload := ingest.BatchPayload{Images: make([]ingest.ImagePayload, 0, len(req.Images))}
	for _, img := range req.Images {
		payload.Images = append(payload.Images, ingest.ImagePayload{
			ObjectKey:  img.ObjectKey,
			ThumbKey:   img.ThumbKey,
			Width:      img.Width,
			Height:     img.Height,
			SceneType:  img.SceneType,
			Brightness: img.Brightness,
			Faces:      toDetections(img.Faces),
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	jobID := uuid.New()
	payloadRef := fmt.Sprintf("ingest/%s.json", jobID)
	if err := h.minio.PutObject(ctx, payloadRef, data, "application/json"); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.CreateJob(ctx, jobID, event.ID, len(req.Images)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	task := models.IngestTask{
		JobID:      jobID,
		EventID:    event.ID,
		PayloadRef: payloadRef,
		ImageCount: len(req.Images),
		EnqueuedAt: time.Now().UTC(),
	}
	if err := h.producer.PublishIngestTask(ctx, task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, dto.IngestBatchResponse{
		JobID:   jobID,
		EventID: event.ID,
		Images:  len(req.Images),
		Status:  string(models.JobStatusPending),
	})
}

func (h *EventHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.db.GetJob(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, dto.JobResponse{
		JobID:     job.JobID,
		EventID:   job.EventID,
		Status:    string(job.Status),
		Total:     job.Total,
		Processed: job.Processed,
		Failed:    job.Failed,
		Faces:     job.Faces,
		Error:     job.Error,
	})
}

func (h *EventHandler) loadEvent(c *gin.Context) (*models.Event, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return nil, false
	}

	event, err := h.db.GetEvent(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return nil, false
	}
	return event, true
}

func eventResponse(e *models.Event) dto.EventResponse {
	return dto.EventResponse{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}

func imageResponse(img models.Image) dto.ImageResponse {
	return dto.ImageResponse{
		ID:        img.ID,
		EventID:   img.EventID,
		ObjectKey: img.ObjectKey,
		ThumbKey:  img.ThumbKey,
		Width:     img.Width,
		Height:    img.Height,
		SceneType: img.SceneType,
		FaceCount: img.FaceCount,
		CreatedAt: img.CreatedAt.Format(time.RFC3339),
	}
}
