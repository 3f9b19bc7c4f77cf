package persistence

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// RunMigrations applies every pending embedded migration.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	return migrate(ctx, pool, logger, func(ctx context.Context, g *gooseRunner) error {
		return g.up(ctx)
	})
}

// RollbackMigration reverts the most recent migration.
func RollbackMigration(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	return migrate(ctx, pool, logger, func(ctx context.Context, g *gooseRunner) error {
		return g.down(ctx)
	})
}

// MigrationStatus logs the applied state of every migration.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	return migrate(ctx, pool, logger, func(ctx context.Context, g *gooseRunner) error {
		return g.status(ctx)
	})
}

type gooseRunner struct {
	pool *pgxpool.Pool
}

func (g *gooseRunner) up(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(g.pool)
	defer db.Close()
	return goose.UpContext(ctx, db, migrationsDir)
}

func (g *gooseRunner) down(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(g.pool)
	defer db.Close()
	return goose.DownContext(ctx, db, migrationsDir)
}

func (g *gooseRunner) status(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(g.pool)
	defer db.Close()
	return goose.StatusContext(ctx, db, migrationsDir)
}

func migrate(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger, run func(context.Context, *gooseRunner) error) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	if err := run(ctx, &gooseRunner{pool: pool}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("migrations finished")
	return nil
}
