package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/caiomeira/extractd/internal/config"
	"github.com/caiomeira/extractd/internal/core/cache"
	"github.com/caiomeira/extractd/internal/core/layout"
	"github.com/caiomeira/extractd/internal/core/ports"
	"github.com/caiomeira/extractd/internal/core/resolve"
	"github.com/caiomeira/extractd/internal/core/usecase"
	"github.com/caiomeira/extractd/internal/infrastructure/cache/memstore"
	"github.com/caiomeira/extractd/internal/infrastructure/cache/pgstore"
	"github.com/caiomeira/extractd/internal/infrastructure/llm/openai"
	"github.com/caiomeira/extractd/internal/infrastructure/queue/nats"
	"github.com/caiomeira/extractd/internal/infrastructure/textsource/pdfsource"
	"github.com/caiomeira/extractd/internal/observability/logging"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue     ports.JobQueue
	Extractor ports.Extractor

	closeFn func()
}

func New(ctx context.Context, service string, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	store, closeStore, err := newCacheStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cacheSvc := cache.NewService(store, cfg.CacheTTL, logger)

	reg := layout.MustLoad()
	resolver := resolve.New(reg, cfg.FieldMinConfidence)
	source := pdfsource.New(nil)

	var solver ports.FieldSolver
	if cfg.LLMBaseURL != "" {
		solver = openai.New(cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMAPIKey, cfg.LLMRateRPS)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		if closeStore != nil {
			closeStore()
		}
		return nil, fmt.Errorf("init job queue: %w", err)
	}

	extractor := usecase.NewExtractUseCase(source, solver, cacheSvc, reg, resolver, logger, usecase.Options{
		CoverageThreshold: cfg.CoverageThreshold,
		ExtractorVersion:  cfg.ExtractorVersion,
		CacheSalt:         cfg.CacheSalt,
		LLMTimeout:        cfg.LLMTimeout,
	})

	return &App{
		Config:    cfg,
		Logger:    logger,
		Queue:     queue,
		Extractor: extractor,
		closeFn: func() {
			queue.Close()
			if closeStore != nil {
				closeStore()
			}
		},
	}, nil
}

func newCacheStore(ctx context.Context, cfg config.Config) (ports.CacheStore, func(), error) {
	switch cfg.CacheBackend {
	case "postgres":
		db, err := pgstore.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		store := pgstore.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure cache schema: %w", err)
		}
		return store, func() { _ = db.Close() }, nil
	case "memory", "":
		return memstore.New(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
