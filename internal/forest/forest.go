// Package forest is a random forest regressor: bagged CART trees whose
// predictions are averaged. Fitting is deterministic for a given seed no
// matter how many workers are used.
package forest

import (
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"soilnet-ml/internal/model"
)

type Params struct {
	Trees           int    `json:"n_estimators"`
	MaxDepth        int    `json:"max_depth"`
	MinSamplesSplit int    `json:"min_samples_split"`
	Seed            uint64 `json:"random_state"`
	// Workers bounds parallel tree fitting; 0 means one per CPU. Not persisted.
	Workers int `json:"-"`
}

// DefaultParams mirrors the hyperparameters the trainer ships with.
func DefaultParams() Params {
	return Params{Trees: 100, MaxDepth: 10, MinSamplesSplit: 2, Seed: 42}
}

type Regressor struct {
	params Params
	width  int
	trees  []tree
}

var _ model.Regressor = (*Regressor)(nil)

func New(p Params) *Regressor {
	if p.Trees < 1 {
		p.Trees = 1
	}
	if p.MaxDepth < 1 {
		p.MaxDepth = 1
	}
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	return &Regressor{params: p}
}

// Factory returns a model.Factory producing forests with p.
func Factory(p Params) model.Factory {
	return func() model.Regressor { return New(p) }
}

func (r *Regressor) Params() Params { return r.params }

// Fit replaces any previous fit.
func (r *Regressor) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return model.ErrNoSamples
	}
	if len(X) != len(y) {
		return fmt.Errorf("%w: %d rows, %d targets", model.ErrShapeMismatch, len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return fmt.Errorf("%w: rows have no features", model.ErrShapeMismatch)
	}
	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d features, want %d", model.ErrShapeMismatch, i, len(row), width)
		}
	}

	workers := r.params.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	trees := make([]tree, r.params.Trees)
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(r.params.Seed, uint64(i)))
			trees[i] = fitTree(X, y, r.params.MaxDepth, r.params.MinSamplesSplit, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	r.width = width
	r.trees = trees
	return nil
}

func (r *Regressor) Predict(X [][]float64) ([]float64, error) {
	if len(r.trees) == 0 {
		return nil, model.ErrNotFitted
	}
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != r.width {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", model.ErrShapeMismatch, i, len(row), r.width)
		}
		sum := 0.0
		for _, t := range r.trees {
			sum += t.predict(row)
		}
		out[i] = sum / float64(len(r.trees))
	}
	return out, nil
}
