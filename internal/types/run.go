package types

import "time"

const (
	RunSucceeded     = "succeeded"
	RunPersistFailed = "persist_failed"
)

// TrainingRun is one row of training history.
type TrainingRun struct {
	ID              string    `json:"run_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Status          string    `json:"status"`
	RMSEMean        float64   `json:"rmse_mean"`
	RMSEStd         float64   `json:"rmse_std"`
	TrainingSamples int       `json:"training_samples"`
	ModelPath       string    `json:"model_path"`
	DataPath        string    `json:"data_path"`
	Error           string    `json:"error,omitempty"`
}
