package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/facematch/internal/config"
	"github.com/your-org/facematch/internal/ingest"
	"github.com/your-org/facematch/internal/observability"
	"github.com/your-org/facematch/internal/queue"
	"github.com/your-org/facematch/internal/storage"
	"github.com/your-org/facematch/internal/vectorstore"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting facematch ingest worker", "workers", cfg.Ingest.WorkerCount)

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Error("ensure nats streams", "error", err)
		os.Exit(1)
	}

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	vectors := vectorstore.New(db.Pool(), cfg.Search.ModelVersion, cfg.Ingest.LockWait)
	processor := ingest.NewProcessor(db, minioStore, vectors, producer, cfg.Ingest)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// AckWait must outlast the task budget or redeliveries race the worker.
	ackWait := cfg.Ingest.TaskTimeout + 30*time.Second
	if err := consumer.ConsumeIngest(ctx, "ingest-worker", processor.HandleTask, cfg.Ingest.WorkerCount, ackWait); err != nil {
		slog.Error("start ingest consumer", "error", err)
		os.Exit(1)
	}

	// Report queue depth while running
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if depth, err := producer.QueueDepth(ctx); err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down ingest worker...")
	cancel()
	time.Sleep(time.Second)
	slog.Info("ingest worker stopped")
}
