package db

import (
	"context"
	"database/sql"
	"time"

	libdb "energymonitor/backend/libs/db"
	"energymonitor/backend/services/monitoring-service/internal/config"
	"energymonitor/backend/services/monitoring-service/internal/repository"
)

const migrateTimeout = 30 * time.Second

// NewPostgres connects to Postgres using shared library helper and, when
// enabled, creates the monitoring tables.
func NewPostgres(cfg *config.Config) (*sql.DB, error) {
	sqlDB, err := libdb.NewPostgresDB(cfg.Database.DSN, libdb.PoolOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		ConnLifetime: cfg.Database.ConnLifetime,
	})
	if err != nil {
		return nil, err
	}
	if !cfg.Database.AutoMigrate {
		return sqlDB, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()
	if err := repository.EnsureSchema(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return sqlDB, nil
}
