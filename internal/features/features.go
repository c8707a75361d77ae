// Package features turns reading tables into model-ready feature matrices.
//
// The column set and order returned by Names is shared by training and
// inference; any change here invalidates persisted models.
package features

import (
	"errors"
	"sort"
	"time"

	"soilnet-ml/internal/types"
)

// Mode selects whether Build constructs a supervised target.
type Mode int

const (
	Inference Mode = iota
	Training
)

func (m Mode) String() string {
	if m == Training {
		return "training"
	}
	return "inference"
}

const (
	HumidityPercent  = "humidity_percent"
	RawValue         = "raw_value"
	RSSI             = "rssi"
	Voltage          = "voltage"
	SamplingInterval = "sampling_interval"
	Hour             = "hour"
	DayOfWeek        = "day_of_week"

	Target = "humidity_future"
)

var names = []string{
	HumidityPercent,
	RawValue,
	RSSI,
	Voltage,
	SamplingInterval,
	Hour,
	DayOfWeek,
}

// Width is the number of feature columns.
const Width = 7

var ErrEmptyTable = errors.New("features: training table is empty")

// Names returns the feature columns in matrix order.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Set is a built feature matrix with its optional target.
type Set struct {
	Columns []string
	X       [][]float64
	// Y is nil in inference mode.
	Y []float64
}

// Len returns the number of rows.
func (s Set) Len() int { return len(s.X) }

// Build derives the feature matrix from table. In training mode the table is
// stable-sorted by (node_id, createdAt) and each row is paired with the
// humidity of the next reading of the same node; rows without a successor
// are dropped. Inference mode keeps caller order and computes no target.
func Build(table types.Table, mode Mode) (Set, error) {
	if mode != Training {
		x := make([][]float64, len(table))
		for i := range table {
			x[i] = Row(table[i])
		}
		return Set{Columns: Names(), X: x}, nil
	}

	if len(table) == 0 {
		return Set{}, ErrEmptyTable
	}

	sorted := make(types.Table, len(table))
	copy(sorted, table)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.NodeID != b.NodeID {
			return a.NodeID < b.NodeID
		}
		return before(a.CreatedAt, b.CreatedAt)
	})

	set := Set{Columns: Names(), X: make([][]float64, 0, len(sorted)), Y: make([]float64, 0, len(sorted))}
	for i := 0; i+1 < len(sorted); i++ {
		cur, next := sorted[i], sorted[i+1]
		// Readings without a node id belong to no series.
		if cur.NodeID == "" || next.NodeID != cur.NodeID {
			continue
		}
		if next.HumidityPercent == nil {
			continue
		}
		set.X = append(set.X, Row(cur))
		set.Y = append(set.Y, *next.HumidityPercent)
	}
	return set, nil
}

// Row maps one reading to its feature vector. Absent values become 0.
func Row(r types.Reading) []float64 {
	hour, dow := temporal(r)
	return []float64{
		valueOr0(r.HumidityPercent),
		valueOr0(r.RawValue),
		valueOr0(r.RSSI),
		valueOr0(r.Voltage),
		valueOr0(r.SamplingInterval),
		float64(hour),
		float64(dow),
	}
}

// temporal returns hour (0-23) and day of week (Monday=0) from the timestamp,
// falling back to the precomputed columns, then to 0.
func temporal(r types.Reading) (hour, dayOfWeek int) {
	if r.CreatedAt != nil {
		t := *r.CreatedAt
		return t.Hour(), (int(t.Weekday()) + 6) % 7
	}
	if r.Hour != nil {
		hour = *r.Hour
	}
	if r.DayOfWeek != nil {
		dayOfWeek = *r.DayOfWeek
	}
	return hour, dayOfWeek
}

// before orders timestamps ascending with missing timestamps last.
func before(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.Before(*b)
	}
}

func valueOr0(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
