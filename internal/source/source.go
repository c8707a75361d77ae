// Package source loads reading tables from the configured backend.
package source

import (
	"context"
	"database/sql"
	"fmt"

	"soilnet-ml/internal/config"
	"soilnet-ml/internal/repository"
	"soilnet-ml/internal/types"
)

// Source yields the full reading table for a training run.
type Source interface {
	Load(ctx context.Context) (types.Table, error)
	// Describe names the source in the metrics record.
	Describe() string
}

// New picks the source for cfg.DataSource. db is only used for the sqlite source.
func New(cfg config.Config, db *sql.DB) (Source, error) {
	switch cfg.DataSource {
	case config.SourceCSV:
		return NewCSV(cfg.DataPath), nil
	case config.SourceSQLite:
		if db == nil {
			return nil, fmt.Errorf("source %s: database not opened", cfg.DataSource)
		}
		return NewSQLite(repository.NewReadingRepository(db), cfg.SQLitePath), nil
	case config.SourceClickHouse:
		return NewClickHouse(cfg)
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.DataSource)
	}
}
