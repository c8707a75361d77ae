package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	SourceCSV        = "csv"
	SourceSQLite     = "sqlite"
	SourceClickHouse = "clickhouse"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	// HomeDir is the absolute base directory every relative path below is resolved against.
	// Set via SOILNET_HOME; defaults to the directory holding the running executable.
	HomeDir string

	DataSource  string
	DataPath    string
	ModelPath   string
	MetricsPath string

	CVFolds        int
	RandomSeed     uint64
	ForestTrees    int
	ForestMaxDepth int
	ForestWorkers  int

	SQLitePath   string
	SQLiteLogSQL bool

	ClickHouseAddr  string
	ClickHouseDB    string
	ClickHouseUser  string
	ClickHousePass  string
	ClickHouseTable string

	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string
}

// SQLiteEnabled reports whether a SQLite store is configured.
func (c Config) SQLiteEnabled() bool { return c.SQLitePath != "" }

// MQTTEnabled reports whether retrain announcements should be published.
func (c Config) MQTTEnabled() bool { return c.MQTTBroker != "" }

func LoadFromEnv() (Config, error) {
	// Values already present in the environment win over .env files.
	_ = godotenv.Load()

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	homeDir, err := resolveHome(strings.TrimSpace(os.Getenv("SOILNET_HOME")))
	if err != nil {
		return Config{}, err
	}
	_ = godotenv.Load(filepath.Join(homeDir, ".env"))

	dataSource := strings.ToLower(envOr("DATA_SOURCE", SourceCSV))
	switch dataSource {
	case SourceCSV, SourceSQLite, SourceClickHouse:
	default:
		return Config{}, fmt.Errorf("invalid DATA_SOURCE %q (allowed: csv, sqlite, clickhouse)", dataSource)
	}

	cvFolds, err := envInt("CV_FOLDS", 5, 1)
	if err != nil {
		return Config{}, err
	}
	seedStr := envOr("RANDOM_SEED", "42")
	seed, err := strconv.ParseUint(seedStr, 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid RANDOM_SEED %q: %w", seedStr, err)
	}
	trees, err := envInt("FOREST_TREES", 100, 1)
	if err != nil {
		return Config{}, err
	}
	maxDepth, err := envInt("FOREST_MAX_DEPTH", 10, 1)
	if err != nil {
		return Config{}, err
	}
	workers, err := envInt("FOREST_WORKERS", 0, 0)
	if err != nil {
		return Config{}, err
	}

	sqlitePath := strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	if sqlitePath != "" && !strings.HasPrefix(sqlitePath, "file:") && sqlitePath != ":memory:" {
		sqlitePath = resolvePath(homeDir, sqlitePath)
	}
	if dataSource == SourceSQLite && sqlitePath == "" {
		return Config{}, fmt.Errorf("SQLITE_PATH is required when DATA_SOURCE=%s", SourceSQLite)
	}
	logSQLStr := envOr("SQLITE_LOG_SQL", "false")
	logSQL, err := strconv.ParseBool(logSQLStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SQLITE_LOG_SQL %q: %w", logSQLStr, err)
	}

	mqttPort, err := envInt("MQTT_PORT", 1883, 1)
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:          appEnv,
		LogLevel:        level,
		HomeDir:         homeDir,
		DataSource:      dataSource,
		DataPath:        resolvePath(homeDir, envOr("DATA_PATH", filepath.Join("in", "soil_readings.csv"))),
		ModelPath:       resolvePath(homeDir, envOr("MODEL_PATH", filepath.Join("models", "humidity_regressor.json"))),
		MetricsPath:     resolvePath(homeDir, envOr("METRICS_PATH", filepath.Join("out", "metrics.json"))),
		CVFolds:         cvFolds,
		RandomSeed:      seed,
		ForestTrees:     trees,
		ForestMaxDepth:  maxDepth,
		ForestWorkers:   workers,
		SQLitePath:      sqlitePath,
		SQLiteLogSQL:    logSQL,
		ClickHouseAddr:  envOr("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDB:    envOr("CLICKHOUSE_DB", "default"),
		ClickHouseUser:  envOr("CLICKHOUSE_USER", "default"),
		ClickHousePass:  strings.TrimSpace(os.Getenv("CLICKHOUSE_PASS")),
		ClickHouseTable: envOr("CLICKHOUSE_TABLE", "soil_readings"),
		MQTTBroker:      strings.TrimSpace(os.Getenv("MQTT_BROKER")),
		MQTTPort:        mqttPort,
		MQTTClientID:    envOr("MQTT_CLIENT_ID", "soilnet-ml"),
		MQTTTopic:       envOr("MQTT_TOPIC", "soilnet/model/metrics"),
	}, nil
}

func resolveHome(dir string) (string, error) {
	if dir == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("locate executable: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		dir = filepath.Dir(exe)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("SOILNET_HOME %q: %w", dir, err)
	}
	return abs, nil
}

func resolvePath(home, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(home, p)
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def, min int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if n < min {
		return 0, fmt.Errorf("%s must be >= %d, got %d", key, min, n)
	}
	return n, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
