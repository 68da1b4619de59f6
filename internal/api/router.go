// Package api wires the HTTP surface: event CRUD, batch ingest, face search,
// feedback and job progress over WebSocket.
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facematch/internal/api/handlers"
	"github.com/your-org/facematch/internal/api/ws"
	"github.com/your-org/facematch/internal/auth"
	"github.com/your-org/facematch/internal/feedback"
	"github.com/your-org/facematch/internal/queue"
	"github.com/your-org/facematch/internal/rank"
	"github.com/your-org/facematch/internal/storage"
	"github.com/your-org/facematch/internal/vectorstore"
)

type RouterConfig struct {
	APIKey        string
	DB            *storage.PostgresStore
	MinIO         *storage.MinIOStore
	Vectors       *vectorstore.Store
	Producer      *queue.Producer
	Searcher      *rank.Searcher
	Feedback      *feedback.Store
	Hub           *ws.Hub
	SearchTimeout time.Duration
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Events & Ingest
	eventH := handlers.NewEventHandler(cfg.DB, cfg.MinIO, cfg.Vectors, cfg.Producer)
	v1.POST("/events", eventH.Create)
	v1.GET("/events", eventH.List)
	v1.GET("/events/:id", eventH.Get)
	v1.DELETE("/events/:id", eventH.Delete)
	v1.GET("/events/:id/images", eventH.ListImages)
	v1.POST("/events/:id/ingest", eventH.IngestBatch)
	v1.GET("/jobs/:jobId", eventH.GetJob)

	// Search
	searchH := handlers.NewSearchHandler(cfg.Searcher, cfg.SearchTimeout)
	v1.POST("/events/:id/search", searchH.Search)

	// Feedback
	feedbackH := handlers.NewFeedbackHandler(cfg.Feedback)
	v1.POST("/events/:id/feedback", feedbackH.Create)
	v1.GET("/events/:id/feedback/stats", feedbackH.Stats)

	return r
}
