package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facematch/internal/face"
	"github.com/your-org/facematch/internal/rank"
	"github.com/your-org/facematch/internal/vectorstore"
	"github.com/your-org/facematch/pkg/dto"
)

type SearchHandler struct {
	searcher *rank.Searcher
	timeout  time.Duration
}

func NewSearchHandler(searcher *rank.Searcher, timeout time.Duration) *SearchHandler {
	return &SearchHandler{searcher: searcher, timeout: timeout}
}

func (h *SearchHandler) Search(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filter := vectorstore.Filter(req.Filter)
	if err := filter.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	out, err := h.searcher.Search(ctx, rank.Input{
		EventID:          eventID,
		Faces:            toDetections(req.Faces),
		QueryText:        req.QueryText,
		Filter:           filter,
		Threshold:        req.Threshold,
		MaxResults:       req.MaxResults,
		ExcludedImageIDs: req.ExcludedImageIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, rank.ErrNoFaceDetected):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no face detected in query image"})
		case errors.Is(err, context.DeadlineExceeded):
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "search timed out"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	results := make([]dto.SearchResult, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, dto.SearchResult{
			Image:      imageResponse(r.Image),
			Similarity: r.Similarity,
			Details: dto.MatchDetails{
				VectorSimilarity:  r.Details.VectorSimilarity,
				LexicalScore:      r.Details.LexicalScore,
				QualityAdjustment: r.Details.QualityAdjustment,
				FeedbackPenalty:   r.Details.FeedbackPenalty,
				FaceQuality:       r.Details.FaceQuality,
				IsFrontal:         r.Details.IsFrontal,
				Prominence:        r.Details.Prominence,
				SceneType:         r.Details.SceneType,
			},
		})
	}

	c.JSON(http.StatusOK, dto.SearchResponse{
		Results:         results,
		Total:           len(results),
		SelfieHash:      out.SelfieHash,
		FeedbackApplied: out.FeedbackApplied,
		FeedbackStats: dto.FeedbackStats{
			PersonalFeedbackCount: out.Stats.PersonalFeedbackCount,
			TotalFeedbackCount:    out.Stats.TotalFeedbackCount,
		},
	})
}

func toDetections(in []dto.FaceDetection) []face.Detection {
	out := make([]face.Detection, 0, len(in))
	for _, d := range in {
		out = append(out, face.Detection{
			Embedding:      d.Embedding,
			BBox:           face.BBox{X: d.BBox.X, Y: d.BBox.Y, W: d.BBox.W, H: d.BBox.H},
			DetectionScore: d.DetectionScore,
			Age:            d.Age,
			Gender:         d.Gender,
			Yaw:            d.Yaw,
			Pitch:          d.Pitch,
			Roll:           d.Roll,
			Quality:        d.Quality,
			Prominence:     d.Prominence,
			CenterDist:     d.CenterDist,
			Sharpness:      d.Sharpness,
		})
	}
	return out
}
