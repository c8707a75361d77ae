// Package trainer estimates generalization error with shuffled k-fold
// cross-validation and fits the final model on the full data set.
package trainer

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"soilnet-ml/internal/model"
)

const DefaultFolds = 5

// Scores is the cross-validation outcome. Folds is the fold count actually
// used after clamping; 0 means evaluation was skipped.
type Scores struct {
	RMSEMean float64
	RMSEStd  float64
	Folds    int
	FoldRMSE []float64
}

type Trainer struct {
	factory model.Factory
	folds   int
	seed    uint64
	logger  *slog.Logger
}

func New(factory model.Factory, folds int, seed uint64, logger *slog.Logger) *Trainer {
	if folds <= 0 {
		folds = DefaultFolds
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{factory: factory, folds: folds, seed: seed, logger: logger}
}

// Evaluate runs k-fold cross-validation with k clamped to len(X). Below two
// folds it returns zero scores instead of failing. Errors from the model are
// returned unchanged in meaning, wrapped with the fold number.
func (t *Trainer) Evaluate(X [][]float64, y []float64) (Scores, error) {
	if len(X) != len(y) {
		return Scores{}, fmt.Errorf("%w: %d rows, %d targets", model.ErrShapeMismatch, len(X), len(y))
	}
	k := min(t.folds, len(X))
	if k < 2 {
		t.logger.Warn("too few samples for cross-validation, reporting zero scores",
			"samples", len(X),
			"requested_folds", t.folds,
		)
		return Scores{}, nil
	}

	folds := KFold(len(X), k, t.seed)
	rmse := make([]float64, 0, k)
	for i, test := range folds {
		trainX, trainY, testX, testY := split(X, y, test)

		reg := t.factory()
		if err := reg.Fit(trainX, trainY); err != nil {
			return Scores{}, fmt.Errorf("fold %d fit: %w", i+1, err)
		}
		pred, err := reg.Predict(testX)
		if err != nil {
			return Scores{}, fmt.Errorf("fold %d predict: %w", i+1, err)
		}
		score := RMSE(testY, pred)
		t.logger.Debug("fold scored", "fold", i+1, "train", len(trainY), "test", len(testY), "rmse", score)
		rmse = append(rmse, score)
	}

	mean, std := meanStd(rmse)
	return Scores{RMSEMean: mean, RMSEStd: std, Folds: k, FoldRMSE: rmse}, nil
}

// Train fits a fresh regressor on all rows.
func (t *Trainer) Train(X [][]float64, y []float64) (model.Regressor, error) {
	reg := t.factory()
	if err := reg.Fit(X, y); err != nil {
		return nil, fmt.Errorf("fit final model: %w", err)
	}
	return reg, nil
}

// KFold shuffles 0..n-1 with seed and cuts the permutation into k contiguous
// held-out folds. The first n%k folds get one extra index.
func KFold(n, k int, seed uint64) [][]int {
	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	folds := make([][]int, 0, k)
	start := 0
	for i := range k {
		size := n / k
		if i < n%k {
			size++
		}
		folds = append(folds, perm[start:start+size])
		start += size
	}
	return folds
}

// RMSE is the root of the mean squared difference between want and got.
func RMSE(want, got []float64) float64 {
	if len(want) == 0 {
		return 0
	}
	sum := 0.0
	for i := range want {
		d := want[i] - got[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(want)))
}

func split(X [][]float64, y []float64, test []int) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	held := make([]bool, len(X))
	for _, i := range test {
		held[i] = true
	}
	for i := range X {
		if held[i] {
			continue
		}
		trainX = append(trainX, X[i])
		trainY = append(trainY, y[i])
	}
	for _, i := range test {
		testX = append(testX, X[i])
		testY = append(testY, y[i])
	}
	return trainX, trainY, testX, testY
}

// meanStd returns the arithmetic mean and the population standard deviation.
func meanStd(v []float64) (mean, std float64) {
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))
	for _, x := range v {
		std += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(std / float64(len(v)))
}
