package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"serviceflow_gateway/internal/audit"
	"serviceflow_gateway/internal/board"
	boardhandler "serviceflow_gateway/internal/board/handler"
	"serviceflow_gateway/internal/events"
	apphttp "serviceflow_gateway/internal/http"
	"serviceflow_gateway/internal/http/router"
	"serviceflow_gateway/internal/notification"
	"serviceflow_gateway/internal/reference"
	"serviceflow_gateway/internal/upstream"
	"serviceflow_gateway/platform/config"
	"serviceflow_gateway/platform/logger"
	"serviceflow_gateway/platform/validator"
)

// shutdownGrace bounds the drain of in-flight requests on SIGTERM.
const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting gateway", "env", cfg.Env, "addr", cfg.HTTPAddr, "upstream", cfg.UpstreamBaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Upstream workflow backend client
	up := upstream.New(cfg, log)

	// Audit recorder: asynq-backed when Redis is configured, else synchronous
	recorder, closeRecorder := initAuditRecorder(cfg, up, log)
	if closeRecorder != nil {
		defer closeRecorder()
	}

	// Screen definitions, optionally overridden from SCREENS_FILE
	defs, err := board.LoadScreens(cfg.GetScreensFile())
	if err != nil {
		log.Error("failed to load screen definitions", "error", err)
		panic("failed to load screen definitions: " + err.Error())
	}
	log.Info("screen definitions loaded", "screens", len(defs))

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module fans board events out to SSE clients and provides
	// the kiosk-backed announcement player.
	notificationModule := notification.New(log)
	notificationModule.RegisterHandlers(eventBus)
	defer notificationModule.Close()

	manager := board.NewManager(defs, up, notificationModule.Player(), eventBus, log)
	actions := board.NewActions(up, recorder, val, eventBus, log, manager.RefreshAll)

	boardModule := boardhandler.New(manager, actions, log)
	referenceModule := reference.NewModule(up, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   up,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			boardModule,
			referenceModule,
			notificationModule,
		},
	}

	engine := router.New(app)

	// Background screens (stale sweep, picklist counter) start with the
	// manager; client-facing boards spin up lazily on first request.
	manager.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
	log.Info("gateway stopped")
}

func initAuditRecorder(cfg config.SchedulerConfig, up *upstream.Client, log *logger.Logger) (audit.Recorder, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; service-time entries are posted synchronously")
		return audit.SyncRecorder{Upstream: up}, nil
	}

	client, err := audit.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize audit queue client; falling back to synchronous posting", "error", err)
		return audit.SyncRecorder{Upstream: up}, nil
	}

	return client, func() {
		_ = client.Close()
	}
}
