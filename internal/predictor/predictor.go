// Package predictor scores one positional feature vector against the
// persisted model and reports the outcome as a single JSON object.
package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"soilnet-ml/internal/features"
	"soilnet-ml/internal/model"
	"soilnet-ml/internal/types"
)

// ArgCount is the number of positional values a prediction needs.
const ArgCount = 7

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var (
	ErrInsufficientArgs = fmt.Errorf("insufficient arguments: %d values are required "+
		"(humidity_percent raw_value rssi voltage sampling_interval hour day_of_week)", ArgCount)
	ErrMalformedArg = errors.New("malformed argument")
)

// Loader returns the model to score with. It is only called once the
// arguments have been validated.
type Loader func() (model.Regressor, error)

type Result struct {
	Prediction *float64 `json:"humidity_future_prediction,omitempty"`
	Error      string   `json:"error,omitempty"`
	Status     string   `json:"status"`
}

func Success(v float64) Result { return Result{Prediction: &v, Status: StatusSuccess} }

func Failure(err error) Result { return Result{Error: err.Error(), Status: StatusFailed} }

// Parse turns the positional arguments into a reading. Values past the
// seventh are ignored.
func Parse(args []string) (types.Reading, error) {
	if len(args) < ArgCount {
		return types.Reading{}, ErrInsufficientArgs
	}

	var (
		floats [4]float64
		ints   [3]int
	)
	floatNames := [4]string{features.HumidityPercent, features.RawValue, features.RSSI, features.Voltage}
	for i, name := range floatNames {
		v, err := strconv.ParseFloat(args[i], 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return types.Reading{}, fmt.Errorf("%w: %s %q is not a finite number", ErrMalformedArg, name, args[i])
		}
		floats[i] = v
	}
	intNames := [3]string{features.SamplingInterval, features.Hour, features.DayOfWeek}
	for i, name := range intNames {
		v, err := strconv.Atoi(args[4+i])
		if err != nil {
			return types.Reading{}, fmt.Errorf("%w: %s %q is not an integer", ErrMalformedArg, name, args[4+i])
		}
		ints[i] = v
	}

	return types.Reading{
		HumidityPercent:  &floats[0],
		RawValue:         &floats[1],
		RSSI:             &floats[2],
		Voltage:          &floats[3],
		SamplingInterval: types.Float(float64(ints[0])),
		Hour:             &ints[1],
		DayOfWeek:        &ints[2],
	}, nil
}

// Predict validates args, loads the model and returns the single prediction.
func Predict(args []string, load Loader) (float64, error) {
	rd, err := Parse(args)
	if err != nil {
		return 0, err
	}
	set, err := features.Build(types.Table{rd}, features.Inference)
	if err != nil {
		return 0, fmt.Errorf("build features: %w", err)
	}

	reg, err := load()
	if err != nil {
		return 0, err
	}
	out, err := reg.Predict(set.X)
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("predict: got %d values for one row", len(out))
	}
	if math.IsNaN(out[0]) || math.IsInf(out[0], 0) {
		return 0, fmt.Errorf("predict: non-finite prediction %v", out[0])
	}
	return out[0], nil
}

// Run predicts and writes exactly one JSON object to w. It returns the
// process exit code.
func Run(args []string, load Loader, w io.Writer) int {
	v, err := Predict(args, load)
	if err != nil {
		return Write(w, Failure(err))
	}
	return Write(w, Success(v))
}

// Write encodes res to w and returns the exit code that goes with it.
func Write(w io.Writer, res Result) int {
	code := 0
	if res.Status != StatusSuccess {
		code = 1
	}
	if err := json.NewEncoder(w).Encode(res); err != nil {
		return 1
	}
	return code
}
