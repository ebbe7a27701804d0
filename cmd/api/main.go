package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/config"
	"rollcall/internal/devices"
	"rollcall/internal/export"
	"rollcall/internal/handler"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/logging"
	"rollcall/internal/metrics"
	"rollcall/internal/notify"
	"rollcall/internal/queue"
	"rollcall/internal/roster"
	"rollcall/internal/session"
	"rollcall/internal/share"
	"rollcall/internal/store"
	"rollcall/internal/subjects"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := logging.New(cfg.LogLevel)
	if err := runHTTP(cfg, logger); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App, logger *logging.SlogLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		logger.Info(ctx, "migrations applied")
	}

	var redisClient *store.Redis
	if cfg.QueueBackend != "memory" || cfg.StateBackend != "memory" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "")
	}

	var (
		sessionStore session.Store
		jobs         export.JobStore
		bus          notify.Bus
	)
	if cfg.StateBackend == "memory" {
		sessionStore, jobs, bus = session.NewMemoryStore(), export.NewMemoryJobs(), notify.NewMemory()
	} else {
		sessionStore = session.NewRedisStore(redisClient.Client)
		jobs = export.NewRedisJobs(redisClient.Client, cfg.ExportJobTTL)
		bus = notify.NewRedis(redisClient.Client, "")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	rosterSvc := roster.NewService(roster.NewRepository(db.Client))
	subjectSvc := subjects.NewService(subjects.NewRepository(db.Client), bus, logger.With("component", "subjects"))
	attRepo := attendance.NewRepository(db.Client)
	attSvc := attendance.NewService(attRepo, subjectSvc, rosterSvc, m, logger.With("component", "attendance"), cfg.StatsConcurrency, cfg.Location())
	issuer := auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
	sessionSvc := session.NewService(rosterSvc, sessionStore, issuer, logger.With("component", "session"))
	exporter := export.NewExporter(subjectSvc, attRepo, cfg.Location(), m)

	// A memory queue only reaches consumers in this process, so run the export worker here.
	if cfg.QueueBackend == "memory" {
		uploader, err := share.FromConfig(ctx, cfg)
		if err != nil {
			return err
		}
		msgs, err := q.Consume(ctx)
		if err != nil {
			return fmt.Errorf("queue consume init: %w", err)
		}
		proc := export.NewProcessor(exporter, jobs, uploader, logger.With("component", "export"))
		go proc.Run(ctx, msgs)
	}

	h := handler.New(handler.Deps{
		Subjects:   subjectSvc,
		Roster:     rosterSvc,
		Attendance: attSvc,
		Sessions:   sessionSvc,
		Reports:    exporter,
		Exports:    export.NewDispatcher(subjectSvc, jobs, q),
		Devices:    devices.NewRegistry(db.Client),
		Changes:    bus,
		Log:        logger.With("component", "http"),
		Location:   cfg.Location(),
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.Metrics(m))
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := db.Healthy(c.Request.Context())
		redisHealthy := redisClient == nil || redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	login := httpmiddleware.NewSimpleTokenBucket(cfg.LoginRateLimitPerMin, cfg.LoginRateLimitPerMin)
	h.Register(r, login.GinMiddleware())

	// WriteTimeout stays 0 so /v1/subjects/changes can stream. Request contexts
	// derive from ctx so open streams end on shutdown.
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "starting server", "addr", srv.Addr, "queue", cfg.QueueBackend, "state", cfg.StateBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info(context.Background(), "shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "server forced shutdown", "error", err)
	}

	logger.Info(context.Background(), "server exited")
	return nil
}
