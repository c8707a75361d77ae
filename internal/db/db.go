package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"soilnet-ml/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

// Open connects to the configured SQLite store. With SQLITE_LOG_SQL set every
// statement is logged at debug level through logger.
func Open(cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	if !cfg.SQLiteEnabled() {
		return nil, fmt.Errorf("db open: SQLITE_PATH is not set")
	}

	dsn, err := buildDSN(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if cfg.SQLiteLogSQL {
		connector, err := NewLoggingConnector(dsn, logger)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		db = sql.OpenDB(connector)
	} else {
		db, err = sql.Open(driverName, dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	// One writer at a time; an in-memory database also lives on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func buildDSN(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}

	// foreign_keys=on enforces FK constraints
	// busy_timeout avoids "database is locked" while soilnetctl and the trainer overlap
	// journal_mode=WAL lets readers run during an import
	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
