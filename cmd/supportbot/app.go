package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/command"
	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/localization"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/persistence"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/repository/memory"
	"github.com/spec-kit/support-bot/internal/service"
)

// app holds the wiring shared by every subcommand.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	postgres   *persistence.Postgres
	store      repository.Store
	metrics    *observability.Metrics
	dispatcher events.Dispatcher
	localizer  *localization.Localizer
	lifecycle  *service.LifecycleService
	staff      *service.StaffService
	stats      *service.StatsService
	surface    *command.Surface
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, metrics: observability.NewMetrics()}

	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		a.store = memory.New()
	default:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.postgres = pg
		a.store = repository.NewPostgresStore(pg.PoolHandle())
	}

	a.localizer, err = localization.New(cfg.Localization.DefaultLanguage)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("load locales: %w", err)
	}

	a.dispatcher = events.NewInMemoryDispatcher(logger)
	a.lifecycle = service.NewLifecycleService(service.LifecycleDependencies{
		Store:      a.store,
		Dispatcher: a.dispatcher,
		Metrics:    a.metrics,
		Logger:     logger,
	})
	a.staff = service.NewStaffService(*cfg, a.lifecycle)
	a.stats = service.NewStatsService(a.lifecycle)
	a.surface = command.NewSurface(a.lifecycle, a.staff, a.stats, logger)
	return a, nil
}

func (a *app) migrate(ctx context.Context) error {
	if a.postgres == nil || !a.cfg.Postgres.RunMigrations {
		return nil
	}
	return persistence.RunMigrations(ctx, a.postgres.PoolHandle(), a.logger)
}

func (a *app) close() {
	a.postgres.Close()
	_ = a.logger.Sync()
}
