package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"soilnet-ml/internal/types"
)

//go:embed sql/insert-run.sql
var insertRunSQL string

//go:embed sql/list-runs.sql
var listRunsSQL string

type RunRepository interface {
	InsertRun(ctx context.Context, run types.TrainingRun) error
	ListRuns(ctx context.Context, limit int) ([]types.TrainingRun, error)
}

type runRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) InsertRun(ctx context.Context, run types.TrainingRun) error {
	var errText any
	if run.Error != "" {
		errText = run.Error
	}
	_, err := r.db.ExecContext(ctx, insertRunSQL,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.Status,
		run.RMSEMean,
		run.RMSEStd,
		run.TrainingSamples,
		run.ModelPath,
		run.DataPath,
		errText,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first. A non-positive limit returns all runs.
func (r *runRepository) ListRuns(ctx context.Context, limit int) ([]types.TrainingRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, listRunsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close runs rows", "error", err)
		}
	}()

	var out []types.TrainingRun
	for rows.Next() {
		var (
			run             types.TrainingRun
			started, finish string
			errText         sql.NullString
		)
		if err := rows.Scan(&run.ID, &started, &finish, &run.Status, &run.RMSEMean, &run.RMSEStd,
			&run.TrainingSamples, &run.ModelPath, &run.DataPath, &errText); err != nil {
			return nil, err
		}
		if run.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if run.FinishedAt, err = parseTime(finish); err != nil {
			return nil, err
		}
		run.Error = errText.String
		out = append(out, run)
	}
	return out, rows.Err()
}
