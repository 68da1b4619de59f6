package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facematch",
		Name:      "searches_total",
		Help:      "Total number of search requests processed",
	})

	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "facematch",
		Name:      "search_duration_seconds",
		Help:      "End-to-end duration of the ranking pipeline",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	CandidatesSurfaced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facematch",
		Name:      "candidates_surfaced_total",
		Help:      "Total number of candidate images surfaced to searchers",
	})

	FilterFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facematch",
		Name:      "filter_fallbacks_total",
		Help:      "Vector queries retried without a metadata filter",
	})

	LockTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facematch",
		Name:      "lock_timeouts_total",
		Help:      "Per-event write lock acquisitions that timed out",
	})

	LockDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facematch",
		Name:      "lock_degraded_total",
		Help:      "Writes performed without serialization after lock machinery errors",
	})

	LexicalRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facematch",
		Name:      "lexical_rebuilds_total",
		Help:      "Lexical index rebuilds triggered by stale or missing cache entries",
	})

	FeedbackRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facematch",
		Name:      "feedback_recorded_total",
		Help:      "Rejection feedback records persisted",
	})

	ImagesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facematch",
		Name:      "images_ingested_total",
		Help:      "Images processed by ingest workers",
	}, []string{"status"})

	FacesIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facematch",
		Name:      "faces_indexed_total",
		Help:      "Face embeddings written to the vector store",
	})

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "facematch",
		Name:      "ingest_duration_seconds",
		Help:      "Duration of one ingest batch task",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facematch",
		Name:      "queue_depth",
		Help:      "Number of pending ingest tasks in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facematch",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facematch",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
