// Package artifact persists the trained model and the metrics record.
//
// Every write lands in a temp file next to the target and is renamed over
// it, so a reader sees either the previous artifact or the new one.
package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"soilnet-ml/internal/model"
	"soilnet-ml/internal/types"
)

// Metrics is the record written after each training run.
type Metrics struct {
	RMSEMean          float64 `json:"rmse_mean"`
	RMSEStd           float64 `json:"rmse_std"`
	TrainingTimestamp string  `json:"training_timestamp"`
	TrainingSamples   int     `json:"training_samples"`
	ModelPath         string  `json:"model_path"`
	DataPath          string  `json:"data_path"`
}

func SaveModel(path string, codec model.Codec, reg model.Regressor) error {
	var buf bytes.Buffer
	if err := codec.Save(&buf, reg); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	return nil
}

func LoadModel(path string, codec model.Codec) (model.Regressor, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("model %s: %w", path, types.ErrInputMissing)
		}
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	reg, err := codec.Load(f)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return reg, nil
}

func SaveMetrics(path string, m Metrics) error {
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	if err := writeAtomic(path, append(data, '\n')); err != nil {
		return fmt.Errorf("save metrics: %w", err)
	}
	return nil
}

func LoadMetrics(path string) (Metrics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Metrics{}, fmt.Errorf("metrics %s: %w", path, types.ErrInputMissing)
		}
		return Metrics{}, fmt.Errorf("read metrics: %w", err)
	}
	var m Metrics
	if err := json.Unmarshal(data, &m); err != nil {
		return Metrics{}, fmt.Errorf("unmarshal metrics: %w", err)
	}
	return m, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	committed = true
	return nil
}
