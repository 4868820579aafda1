package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/lyricwatch/lyricwatch/internal/analysis"
	"github.com/lyricwatch/lyricwatch/internal/api"
	"github.com/lyricwatch/lyricwatch/internal/api/middleware"
	"github.com/lyricwatch/lyricwatch/internal/config"
	"github.com/lyricwatch/lyricwatch/internal/events"
	"github.com/lyricwatch/lyricwatch/internal/platform/postgres"
	"github.com/lyricwatch/lyricwatch/internal/queue"
	"github.com/lyricwatch/lyricwatch/internal/service"
	"github.com/lyricwatch/lyricwatch/internal/service/auth"
	"github.com/lyricwatch/lyricwatch/internal/store"
	"github.com/lyricwatch/lyricwatch/internal/worker"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	jobStore      store.JobStore
	progressStore store.ProgressStore

	// Service interfaces
	jwtService      auth.JWTService
	analysisService *service.AnalysisService

	// Event system
	eventEmitter events.EventEmitter

	// Job processing
	jobQueue *queue.Queue
	workers  []*worker.Worker
	recovery *worker.RecoveryMonitor
	reaper   *worker.SnapshotReaper
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize JWT service
	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized")

	// Initialize stores
	app.jobStore = postgres.NewPostgresJobStore(db)
	app.progressStore = postgres.NewPostgresProgressStore(db)

	// Initialize event emitter with the audit-log handler
	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(events.NewLogHandler(logger))
	app.eventEmitter = emitter

	// Initialize the queue and the analysis service on top of it
	app.jobQueue = queue.New(
		app.jobStore,
		app.progressStore,
		app.eventEmitter,
		cfg.Worker.SnapshotGrace,
		logger,
	)
	app.analysisService = service.NewAnalysisService(
		app.jobQueue,
		app.jobStore,
		app.progressStore,
		logger,
	)

	// Initialize the unit executor from its collaborators
	executor, err := setupExecutor(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to setup unit executor: %w", err)
	}

	// Background sweeps need a catalog; without one they fail fatally on
	// enumeration, which is the right behavior for a misconfigured deploy.
	var catalog analysis.CatalogSource
	if cfg.Scoring.CatalogBaseURL != "" {
		catalog, err = analysis.NewHTTPCatalogSource(cfg.Scoring.CatalogBaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize catalog source: %w", err)
		}
		logger.Info("Catalog source initialized")
	} else {
		logger.Warn("No catalog source configured; background sweeps will fail")
	}
	registry := analysis.NewRegistry(catalog)

	// Initialize the worker pool and its supporting background processes
	for i := 0; i < cfg.Worker.Count; i++ {
		app.workers = append(app.workers, worker.New(worker.Params{
			ID:        i,
			Queue:     app.jobQueue,
			Jobs:      app.jobStore,
			Snapshots: app.progressStore,
			Registry:  registry,
			Executor:  executor,
			Emitter:   app.eventEmitter,
			Config:    cfg.Worker,
			Logger:    logger,
		}))
	}
	app.recovery = worker.NewRecoveryMonitor(
		app.jobStore,
		cfg.Worker.RecoveryInterval,
		cfg.Worker.HeartbeatInterval,
		logger,
	)
	app.reaper = worker.NewSnapshotReaper(
		app.progressStore,
		cfg.Worker.RecoveryInterval,
		logger,
	)

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupExecutor builds the lyrics-then-score unit executor. The scorer is
// Gemini-backed when an API key is configured and a keyword stub otherwise,
// which keeps local development possible without credentials.
func setupExecutor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (analysis.UnitExecutor, error) {
	if cfg.Scoring.LyricsBaseURL == "" {
		return nil, errors.New("scoring.lyrics_base_url must be configured")
	}
	lyrics, err := analysis.NewHTTPLyricsProvider(cfg.Scoring.LyricsBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize lyrics provider: %w", err)
	}

	var scorer analysis.ContentScorer
	if cfg.Scoring.GeminiAPIKey != "" {
		scorer, err = analysis.NewGeminiScorer(
			ctx,
			logger.With("component", "gemini_scorer"),
			cfg.Scoring,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini scorer: %w", err)
		}
		logger.Info("Gemini content scorer initialized", "model", cfg.Scoring.ModelName)
	} else {
		scorer = analysis.NewKeywordScorer()
		logger.Warn("No Gemini API key configured; using keyword scorer")
	}

	return analysis.NewExecutor(lyrics, scorer, logger)
}

// Run starts the worker pool, the recovery monitor, the snapshot reaper and
// the HTTP server, then blocks until the context is cancelled and all
// background goroutines have drained.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	bgCtx, cancelBg := context.WithCancel(ctx)
	defer cancelBg()

	var wg sync.WaitGroup
	for _, w := range app.workers {
		wg.Add(1)
		go func(w *worker.Worker) {
			defer wg.Done()
			w.Run(bgCtx)
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.recovery.Run(bgCtx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.reaper.Run(bgCtx)
	}()

	err := app.startHTTPServer(ctx, router)

	// Workers interrupt their in-flight jobs on cancellation, so nothing is
	// lost here beyond at most one unit per worker.
	cancelBg()
	wg.Wait()
	app.cleanup()

	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// setupRouter assembles the HTTP API from the application dependencies.
func (app *application) setupRouter() http.Handler {
	jobHandler := api.NewJobHandler(app.analysisService)
	authMiddleware := middleware.NewAuthMiddleware(app.jwtService)
	return api.NewRouter(jobHandler, authMiddleware)
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}
	app.logger.Info("Application shutdown completed")
}
