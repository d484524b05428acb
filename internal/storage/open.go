package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meltforce/run5k/internal/config"
	"github.com/meltforce/run5k/internal/progress"
)

// SQLiteFile is the database file name inside storage.path.
const SQLiteFile = "run5k.db"

// OpenKV opens the key/value backend selected by cfg.Driver. PostgreSQL
// migrations are applied from migrationsPath first. The returned close
// function releases the backend.
func OpenKV(ctx context.Context, cfg config.StorageConfig, migrationsPath string, log *slog.Logger) (progress.KV, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		dsn := cfg.Postgres.DSN()
		if err := RunMigrations(dsn, migrationsPath); err != nil {
			return nil, nil, fmt.Errorf("migrating: %w", err)
		}
		log.Info("migrations applied")

		db, err := New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting database: %w", err)
		}
		log.Info("database connected", "driver", cfg.Driver)
		return db, db.Close, nil

	case config.DriverSQLite:
		db, err := OpenSQLite(cfg.Path, SQLiteFile)
		if err != nil {
			return nil, nil, err
		}
		log.Info("database opened", "driver", cfg.Driver, "path", cfg.Path)
		return db, func() {
			if err := db.Close(); err != nil {
				log.Warn("closing sqlite", "error", err)
			}
		}, nil

	case config.DriverMemory:
		log.Warn("memory storage: progress is lost on exit")
		return progress.NewMemoryKV(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
