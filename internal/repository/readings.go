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

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/list-readings.sql
var listReadingsSQL string

//go:embed sql/count-readings.sql
var countReadingsSQL string

type ReadingRepository interface {
	InsertReadings(ctx context.Context, table types.Table) (int, error)
	ListReadings(ctx context.Context) (types.Table, error)
	CountReadings(ctx context.Context) (int, error)
}

type readingRepository struct {
	db *sql.DB
}

func NewReadingRepository(db *sql.DB) ReadingRepository {
	return &readingRepository{db: db}
}

// InsertReadings stores table in one transaction; either every row lands or none.
func (r *readingRepository) InsertReadings(ctx context.Context, table types.Table) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertReadingSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare insert reading: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			slog.Error("close insert reading stmt", "error", err)
		}
	}()

	for i, rd := range table {
		_, err := stmt.ExecContext(ctx,
			rd.NodeID,
			formatTime(rd.CreatedAt),
			nullFloat(rd.HumidityPercent),
			nullFloat(rd.RawValue),
			nullFloat(rd.RSSI),
			nullFloat(rd.Voltage),
			nullFloat(rd.SamplingInterval),
			nullInt(rd.Hour),
			nullInt(rd.DayOfWeek),
		)
		if err != nil {
			return 0, fmt.Errorf("insert reading %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(table), nil
}

func (r *readingRepository) ListReadings(ctx context.Context) (types.Table, error) {
	rows, err := r.db.QueryContext(ctx, listReadingsSQL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close readings rows", "error", err)
		}
	}()

	var out types.Table
	for rows.Next() {
		var (
			rd                                 types.Reading
			ts                                 sql.NullString
			humidity, raw, rssi, volt, sampInt sql.NullFloat64
			hour, dow                          sql.NullInt64
		)
		if err := rows.Scan(&rd.NodeID, &ts, &humidity, &raw, &rssi, &volt, &sampInt, &hour, &dow); err != nil {
			return nil, err
		}
		if ts.Valid {
			t, err := parseTime(ts.String)
			if err != nil {
				return nil, err
			}
			rd.CreatedAt = &t
		}
		rd.HumidityPercent = floatPtr(humidity)
		rd.RawValue = floatPtr(raw)
		rd.RSSI = floatPtr(rssi)
		rd.Voltage = floatPtr(volt)
		rd.SamplingInterval = floatPtr(sampInt)
		rd.Hour = intPtr(hour)
		rd.DayOfWeek = intPtr(dow)
		out = append(out, rd)
	}
	return out, rows.Err()
}

func (r *readingRepository) CountReadings(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, countReadingsSQL).Scan(&n)
	return n, err
}

// Timestamps keep their offset so hour of day survives the round trip.
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
