// Package model defines the regression capability the trainer and the
// predictor depend on. Implementations live in their own packages.
package model

import (
	"errors"
	"io"
)

var (
	ErrNotFitted     = errors.New("model: regressor is not fitted")
	ErrShapeMismatch = errors.New("model: input shape mismatch")
	ErrNoSamples     = errors.New("model: no training samples")
)

// Regressor fits a mapping from feature rows to a scalar target.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
}

// Factory returns a fresh, unfitted Regressor with fixed hyperparameters.
type Factory func() Regressor

// Codec serializes fitted regressors. Save must reject regressors of a
// foreign implementation.
type Codec interface {
	Save(w io.Writer, r Regressor) error
	Load(r io.Reader) (Regressor, error)
}
