package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"rollcall/internal/attendance"
	"rollcall/internal/config"
	"rollcall/internal/export"
	"rollcall/internal/logging"
	"rollcall/internal/metrics"
	"rollcall/internal/queue"
	"rollcall/internal/share"
	"rollcall/internal/store"
	"rollcall/internal/subjects"
)

// Worker consumes export jobs, renders the CSV and stores it with the configured share backend.
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel).With("component", "worker")

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == "memory" {
		log.Fatalf("worker needs QUEUE_BACKEND=redis; the API runs exports itself with the memory queue")
	}
	if cfg.StateBackend == "memory" {
		log.Fatalf("worker needs STATE_BACKEND=redis to share export job state with the API")
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		logger.Warn(ctx, "redis not reachable yet, consumer will keep retrying", "addr", cfg.RedisAddr)
	}

	uploader, err := share.FromConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("share backend: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.WorkerMetricsPort != "0" {
		srv := metricsServer(":"+cfg.WorkerMetricsPort, reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, "metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	subjectSvc := subjects.NewService(subjects.NewRepository(db.Client), nil, logger)
	exporter := export.NewExporter(subjectSvc, attendance.NewRepository(db.Client), cfg.Location(), m)
	jobs := export.NewRedisJobs(redisClient.Client, cfg.ExportJobTTL)
	proc := export.NewProcessor(exporter, jobs, uploader, logger)

	q := queue.NewRedisQueue(redisClient.Client, "")
	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	logger.Info(ctx, "worker started, waiting for export jobs", "share", cfg.ShareBackend, "metrics_port", cfg.WorkerMetricsPort)
	proc.Run(ctx, messages)
	logger.Info(context.Background(), "worker stopped")
}
