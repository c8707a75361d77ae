// Package app wires configuration into the training pipeline and the predictor.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"soilnet-ml/internal/artifact"
	"soilnet-ml/internal/config"
	"soilnet-ml/internal/db"
	"soilnet-ml/internal/db/migrate"
	"soilnet-ml/internal/forest"
	"soilnet-ml/internal/model"
	"soilnet-ml/internal/mqtt"
	"soilnet-ml/internal/pipeline"
	"soilnet-ml/internal/predictor"
	"soilnet-ml/internal/repository"
	"soilnet-ml/internal/source"
	"soilnet-ml/internal/trainer"
)

// ForestParams maps the model settings of cfg onto forest parameters.
func ForestParams(cfg config.Config) forest.Params {
	p := forest.DefaultParams()
	p.Trees = cfg.ForestTrees
	p.MaxDepth = cfg.ForestMaxDepth
	p.Seed = cfg.RandomSeed
	p.Workers = cfg.ForestWorkers
	return p
}

// OpenStore opens the SQLite store and applies pending migrations.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	conn, err := db.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	if _, err := migrate.Run(ctx, conn, logger); err != nil {
		_ = db.Close(conn)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return conn, nil
}

// Train runs one training job as configured.
func Train(ctx context.Context, cfg config.Config, logger *slog.Logger) (pipeline.Result, error) {
	logger.Info("config loaded",
		"home", cfg.HomeDir,
		"dataSource", cfg.DataSource,
		"dataPath", cfg.DataPath,
		"modelPath", cfg.ModelPath,
		"metricsPath", cfg.MetricsPath,
		"cvFolds", cfg.CVFolds,
		"randomSeed", cfg.RandomSeed,
		"forestTrees", cfg.ForestTrees,
		"forestMaxDepth", cfg.ForestMaxDepth,
		"sqlitePath", cfg.SQLitePath,
		"mqttBroker", cfg.MQTTBroker,
		"mqttTopic", cfg.MQTTTopic,
	)

	var store *sql.DB
	if cfg.SQLiteEnabled() {
		var err error
		store, err = OpenStore(ctx, cfg, logger)
		if err != nil {
			return pipeline.Result{}, err
		}
		defer func() {
			if err := db.Close(store); err != nil {
				logger.Error("db close", "error", err)
			}
		}()
	}

	src, err := source.New(cfg, store)
	if err != nil {
		return pipeline.Result{}, err
	}

	opts := pipeline.Options{
		Source:      src,
		Trainer:     trainer.New(forest.Factory(ForestParams(cfg)), cfg.CVFolds, cfg.RandomSeed, logger),
		Codec:       forest.Codec{},
		ModelPath:   cfg.ModelPath,
		MetricsPath: cfg.MetricsPath,
		Logger:      logger,
	}
	if store != nil {
		opts.Runs = repository.NewRunRepository(store)
	}
	if cfg.MQTTEnabled() {
		pub := mqtt.NewPublisher(cfg, logger)
		defer pub.Disconnect()
		opts.Announcer = pub
	}

	return pipeline.New(opts).Run(ctx)
}

// ModelLoader reads the persisted model fresh on every call.
func ModelLoader(cfg config.Config) predictor.Loader {
	return func() (model.Regressor, error) {
		return artifact.LoadModel(cfg.ModelPath, forest.Codec{})
	}
}
