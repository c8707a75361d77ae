package source

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"soilnet-ml/internal/config"
	"soilnet-ml/internal/types"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// querier is the part of driver.Conn the source needs.
type querier interface {
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
}

// ClickHouseSource reads every row of a readings table. Columns are cast on
// the server so any numeric column type and nullability is accepted.
type ClickHouseSource struct {
	opts  *clickhouse.Options
	table string

	// open is swapped in tests.
	open func(ctx context.Context) (querier, func() error, error)
}

func NewClickHouse(cfg config.Config) (*ClickHouseSource, error) {
	if !identRe.MatchString(cfg.ClickHouseTable) {
		return nil, fmt.Errorf("invalid CLICKHOUSE_TABLE %q", cfg.ClickHouseTable)
	}
	s := &ClickHouseSource{
		opts: &clickhouse.Options{
			Addr: []string{cfg.ClickHouseAddr},
			Auth: clickhouse.Auth{
				Database: cfg.ClickHouseDB,
				Username: cfg.ClickHouseUser,
				Password: cfg.ClickHousePass,
			},
			Settings: clickhouse.Settings{
				"max_execution_time": 60,
			},
			DialTimeout: 5 * time.Second,
			Compression: &clickhouse.Compression{
				Method: clickhouse.CompressionLZ4,
			},
		},
		table: cfg.ClickHouseTable,
	}
	s.open = s.dial
	return s, nil
}

func (s *ClickHouseSource) Describe() string {
	return fmt.Sprintf("clickhouse://%s/%s.%s", s.opts.Addr[0], s.opts.Auth.Database, s.table)
}

func (s *ClickHouseSource) dial(ctx context.Context) (querier, func() error, error) {
	conn, err := clickhouse.Open(s.opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	return conn, conn.Close, nil
}

func (s *ClickHouseSource) query() string {
	return `SELECT
	toString(node_id),
	CAST(createdAt AS Nullable(DateTime64(3))),
	CAST(humidity_percent AS Nullable(Float64)),
	CAST(raw_value AS Nullable(Float64)),
	CAST(rssi AS Nullable(Float64)),
	CAST(voltage AS Nullable(Float64)),
	CAST(sampling_interval AS Nullable(Float64))
FROM ` + s.table
}

func (s *ClickHouseSource) Load(ctx context.Context) (types.Table, error) {
	conn, closeConn, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closeConn() }()

	rows, err := conn.Query(ctx, s.query())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer func() { _ = rows.Close() }()

	var table types.Table
	for rows.Next() {
		var rd types.Reading
		if err := rows.Scan(
			&rd.NodeID,
			&rd.CreatedAt,
			&rd.HumidityPercent,
			&rd.RawValue,
			&rd.RSSI,
			&rd.Voltage,
			&rd.SamplingInterval,
		); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table, err)
		}
		table = append(table, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", s.table, err)
	}
	return table, nil
}
