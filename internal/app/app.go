package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"ArticlesClassifier/internal/config"
	"ArticlesClassifier/internal/infrastructure/cache"
	"ArticlesClassifier/internal/infrastructure/feed"
	"ArticlesClassifier/internal/infrastructure/llm"
	"ArticlesClassifier/internal/infrastructure/scheduler"
	"ArticlesClassifier/internal/infrastructure/storage"
	"ArticlesClassifier/internal/logging"
	"ArticlesClassifier/internal/usecase"
	"ArticlesClassifier/pkg/logger"
)

// Application wires configuration to the use cases and owns shared resources.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db           *sql.DB
	redisCache   *cache.RedisCache
	orchestrator *usecase.Orchestrator
	ingester     *feed.Ingester
	scheduler    *usecase.Scheduler
}

// New opens the database (waiting briefly for it to come up), runs
// migrations, and builds the full dependency graph.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := openDatabase(ctx, cfg.Database.DSN, baseLogger)
	if err != nil {
		return nil, err
	}

	if err := storage.RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := storage.NewStore(db, cfg.Classification.MaxAttempts)

	var responseCache llm.ResponseCache
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		redisCache = cache.New(cfg.Redis.Addr, cfg.Redis.TTL(), baseLogger.With("component", "cache"))
		if err := redisCache.Ping(ctx); err != nil {
			baseLogger.Warn("redis unreachable, caching disabled", "addr", cfg.Redis.Addr, "error", err)
			_ = redisCache.Close()
			redisCache = nil
		} else {
			responseCache = redisCache
		}
	}

	classifier := llm.NewClient(cfg.LLM, responseCache, baseLogger.With("component", "classifier"))

	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Articles:    store,
		Registry:    store,
		Ledger:      store,
		Classifier:  classifier,
		Logger:      baseLogger.With("component", "orchestrator"),
		Workers:     cfg.Classification.Workers,
		PerOrgLimit: cfg.Classification.PerOrgLimit,
		CallTimeout: cfg.LLM.Timeout(),
	})

	ingester := feed.NewIngester(feed.NewRSSSource(), store, cfg.Feeds, logger.New("ingest"))

	runScheduler := usecase.NewScheduler(
		scheduler.NewTickerScheduler(cfg.Scheduler.Interval()),
		orchestrator,
		baseLogger.With("component", "scheduler"),
	)

	return &Application{
		cfg:          cfg,
		logger:       baseLogger,
		db:           db,
		redisCache:   redisCache,
		orchestrator: orchestrator,
		ingester:     ingester,
		scheduler:    runScheduler,
	}, nil
}

// Classify performs a single classification pass and logs the summary.
func (a *Application) Classify(ctx context.Context, opts usecase.RunOptions) error {
	summary, err := a.orchestrator.Run(ctx, opts)
	if summary != nil {
		summary.Log(a.logger)
	}
	return err
}

// Fetch ingests all configured feeds.
func (a *Application) Fetch(ctx context.Context) error {
	total, err := a.ingester.Run(ctx)
	if err != nil {
		return fmt.Errorf("feed ingest: %w", err)
	}
	a.logger.Info("feed ingest complete", "new_articles", total)
	return nil
}

// Serve runs recurring classification passes until the context is canceled.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.scheduler.Stop(stopCtx)
}

// Close releases database and cache connections.
func (a *Application) Close() error {
	if a.redisCache != nil {
		_ = a.redisCache.Close()
	}
	return a.db.Close()
}

// openDatabase retries the initial ping: the database may still be starting
// when the process launches (docker-compose and CI both hit this).
func openDatabase(ctx context.Context, dsn string, log *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for attempt := 1; attempt <= 10; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return db, nil
		}
		log.Debug("waiting for database", "attempt", attempt, "error", err)
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		}
	}

	_ = db.Close()
	return nil, fmt.Errorf("connect to database: %w", err)
}
