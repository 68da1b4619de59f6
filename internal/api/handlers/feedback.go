package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facematch/internal/feedback"
	"github.com/your-org/facematch/internal/models"
	"github.com/your-org/facematch/pkg/dto"
)

type FeedbackHandler struct {
	store *feedback.Store
}

func NewFeedbackHandler(store *feedback.Store) *FeedbackHandler {
	return &FeedbackHandler{store: store}
}

func (h *FeedbackHandler) Create(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	var req dto.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fb := &models.Feedback{
		EventID:             eventID,
		ImageID:             req.ImageID,
		SelfieHash:          req.SelfieHash,
		RejectedEmbeddingID: req.RejectedEmbeddingID,
		RejectedFaceID:      req.RejectedFaceID,
	}
	if err := h.store.RecordFeedback(c.Request.Context(), fb); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, dto.FeedbackResponse{Status: "recorded"})
}

func (h *FeedbackHandler) Stats(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	selfieHash := c.Query("selfie_hash")
	stats, err := h.store.Stats(c.Request.Context(), eventID, selfieHash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": dto.FeedbackStats{
		PersonalFeedbackCount: stats.PersonalFeedbackCount,
		TotalFeedbackCount:    stats.TotalFeedbackCount,
	}})
}
