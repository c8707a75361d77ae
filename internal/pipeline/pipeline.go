// Package pipeline runs one training job: load, build features, evaluate,
// train, persist, then record and announce the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"soilnet-ml/internal/artifact"
	"soilnet-ml/internal/features"
	"soilnet-ml/internal/model"
	"soilnet-ml/internal/source"
	"soilnet-ml/internal/trainer"
	"soilnet-ml/internal/types"
)

var ErrEmptyTrainingSet = errors.New("no training samples")

// RunRecorder stores training history. repository.RunRepository satisfies it.
type RunRecorder interface {
	InsertRun(ctx context.Context, run types.TrainingRun) error
}

// Announcer publishes a finished run.
type Announcer interface {
	PublishRun(ctx context.Context, run types.TrainingRun) error
}

type Options struct {
	Source      source.Source
	Trainer     *trainer.Trainer
	Codec       model.Codec
	ModelPath   string
	MetricsPath string

	// Optional.
	Runs      RunRecorder
	Announcer Announcer
	Logger    *slog.Logger
}

type Driver struct {
	opts   Options
	logger *slog.Logger

	now   func() time.Time
	newID func() string
}

// Result describes a completed run.
type Result struct {
	RunID   string
	Metrics artifact.Metrics
	Scores  trainer.Scores
	Model   model.Regressor
}

func New(opts Options) *Driver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		opts:   opts,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Run executes the pipeline. Any error before persistence aborts the run
// with nothing written. Model and metrics are then written independently;
// if either fails the returned error joins every persistence failure.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	runID := d.newID()
	started := d.now()
	log := d.logger.With("run_id", runID)
	log.Info("training pipeline started")

	dataPath := d.opts.Source.Describe()
	log.Info("[1/5] loading dataset", "source", dataPath)
	table, err := d.opts.Source.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load dataset: %w", err)
	}
	log.Info("dataset loaded", "readings", len(table))

	log.Info("[2/5] building features")
	set, err := features.Build(table, features.Training)
	if err != nil {
		if errors.Is(err, features.ErrEmptyTable) {
			return Result{}, fmt.Errorf("build features: %w: %w", ErrEmptyTrainingSet, err)
		}
		return Result{}, fmt.Errorf("build features: %w", err)
	}
	if set.Len() == 0 {
		return Result{}, fmt.Errorf("build features from %d readings: %w", len(table), ErrEmptyTrainingSet)
	}
	log.Info("features built", "samples", set.Len())

	log.Info("[3/5] evaluating with cross-validation")
	scores, err := d.opts.Trainer.Evaluate(set.X, set.Y)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate: %w", err)
	}
	log.Info("cross-validation done", "rmse_mean", scores.RMSEMean, "rmse_std", scores.RMSEStd, "folds", scores.Folds)

	metrics := artifact.Metrics{
		RMSEMean:          scores.RMSEMean,
		RMSEStd:           scores.RMSEStd,
		TrainingTimestamp: d.now().Format(time.RFC3339Nano),
		TrainingSamples:   set.Len(),
		ModelPath:         d.opts.ModelPath,
		DataPath:          dataPath,
	}

	log.Info("[4/5] training final model")
	reg, err := d.opts.Trainer.Train(set.X, set.Y)
	if err != nil {
		return Result{}, fmt.Errorf("train: %w", err)
	}

	log.Info("[5/5] saving artifacts")
	persistErr := d.persist(log, reg, metrics)

	res := Result{RunID: runID, Metrics: metrics, Scores: scores, Model: reg}
	run := types.TrainingRun{
		ID:              runID,
		StartedAt:       started,
		FinishedAt:      d.now(),
		Status:          types.RunSucceeded,
		RMSEMean:        metrics.RMSEMean,
		RMSEStd:         metrics.RMSEStd,
		TrainingSamples: metrics.TrainingSamples,
		ModelPath:       metrics.ModelPath,
		DataPath:        metrics.DataPath,
	}
	if persistErr != nil {
		run.Status = types.RunPersistFailed
		run.Error = persistErr.Error()
	}
	d.record(ctx, log, run)

	if persistErr != nil {
		return res, persistErr
	}
	log.Info("training pipeline finished")
	return res, nil
}

// persist writes the model first so a metrics failure never discards it.
func (d *Driver) persist(log *slog.Logger, reg model.Regressor, metrics artifact.Metrics) error {
	var errs []error
	if err := artifact.SaveModel(d.opts.ModelPath, d.opts.Codec, reg); err != nil {
		log.Error("model not saved", "path", d.opts.ModelPath, "err", err)
		errs = append(errs, err)
	} else {
		log.Info("model saved", "path", d.opts.ModelPath)
	}
	if err := artifact.SaveMetrics(d.opts.MetricsPath, metrics); err != nil {
		log.Error("metrics not saved", "path", d.opts.MetricsPath, "err", err)
		errs = append(errs, err)
	} else {
		log.Info("metrics saved", "path", d.opts.MetricsPath)
	}
	return errors.Join(errs...)
}

// record stores and announces the run. Failures are logged only.
func (d *Driver) record(ctx context.Context, log *slog.Logger, run types.TrainingRun) {
	if d.opts.Runs != nil {
		if err := d.opts.Runs.InsertRun(ctx, run); err != nil {
			log.Warn("training run not recorded", "err", err)
		}
	}
	// Only a model that reached disk is worth announcing.
	if d.opts.Announcer != nil && run.Status == types.RunSucceeded {
		if err := d.opts.Announcer.PublishRun(ctx, run); err != nil {
			log.Warn("training run not announced", "err", err)
		}
	}
}
