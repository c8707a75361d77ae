package features

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"soilnet-ml/internal/types"
)

func reading(node string, ts time.Time, humidity float64) types.Reading {
	return types.Reading{
		NodeID:           node,
		CreatedAt:        types.Time(ts),
		HumidityPercent:  types.Float(humidity),
		RawValue:         types.Float(2000 + humidity),
		RSSI:             types.Float(-60),
		Voltage:          types.Float(3.3),
		SamplingInterval: types.Float(60),
	}
}

func TestNames_Order(t *testing.T) {
	want := []string{"humidity_percent", "raw_value", "rssi", "voltage", "sampling_interval", "hour", "day_of_week"}
	if got := Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	if len(Names()) != Width {
		t.Fatalf("Width = %d, len(Names()) = %d", Width, len(Names()))
	}

	// Callers must not be able to mutate the shared column list.
	n := Names()
	n[0] = "mutated"
	if Names()[0] != HumidityPercent {
		t.Fatalf("Names() returned shared slice")
	}
}

func TestBuild_TargetIsNextReadingOfSameNode(t *testing.T) {
	t0 := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC) // Monday
	table := types.Table{
		reading("n1", t0.Add(2*time.Hour), 30), // t3
		reading("n1", t0, 10),                  // t1
		reading("n1", t0.Add(time.Hour), 20),   // t2
	}

	set, err := Build(table, Training)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("rows = %d, want 2", set.Len())
	}
	if set.X[0][0] != 10 || set.Y[0] != 20 {
		t.Errorf("row t1: humidity %v target %v, want 10 -> 20", set.X[0][0], set.Y[0])
	}
	if set.X[1][0] != 20 || set.Y[1] != 30 {
		t.Errorf("row t2: humidity %v target %v, want 20 -> 30", set.X[1][0], set.Y[1])
	}
	if set.X[0][5] != 8 || set.X[1][5] != 9 {
		t.Errorf("hours = %v, %v, want 8, 9", set.X[0][5], set.X[1][5])
	}
}

func TestBuild_InterleavedNodes(t *testing.T) {
	t0 := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	table := types.Table{
		reading("b", t0, 50),
		reading("a", t0.Add(time.Hour), 11),
		reading("b", t0.Add(time.Hour), 51),
		reading("a", t0, 10),
		reading("c", t0, 99), // single reading: dropped entirely
		reading("b", t0.Add(2*time.Hour), 52),
	}

	set, err := Build(table, Training)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var pairs [][2]float64
	for i := range set.X {
		pairs = append(pairs, [2]float64{set.X[i][0], set.Y[i]})
	}
	want := [][2]float64{{10, 11}, {50, 51}, {51, 52}}
	if !reflect.DeepEqual(pairs, want) {
		t.Fatalf("pairs = %v, want %v", pairs, want)
	}
}

func TestBuild_SingleReadingNodeContributesNothing(t *testing.T) {
	table := types.Table{reading("solo", time.Now(), 40)}

	set, err := Build(table, Training)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if set.Len() != 0 || len(set.Y) != 0 {
		t.Fatalf("rows = %d, targets = %d, want 0", set.Len(), len(set.Y))
	}
}

func TestBuild_StableForEqualTimestamps(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	table := types.Table{
		reading("n", ts, 1),
		reading("n", ts, 2),
		reading("n", ts, 3),
	}

	set, err := Build(table, Training)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !reflect.DeepEqual(set.Y, []float64{2, 3}) {
		t.Fatalf("targets = %v, want [2 3] (source order kept)", set.Y)
	}
}

func TestBuild_SkipsRowsWithoutTarget(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	missing := reading("n", t0.Add(time.Hour), 0)
	missing.HumidityPercent = nil
	anonymous := reading("", t0, 5)
	anonymous2 := reading("", t0.Add(time.Hour), 6)

	table := types.Table{reading("n", t0, 10), missing, reading("n", t0.Add(2*time.Hour), 30), anonymous, anonymous2}

	set, err := Build(table, Training)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Row t0 has no defined target; the reading without humidity still gets one.
	if set.Len() != 1 || set.Y[0] != 30 || set.X[0][0] != 0 {
		t.Fatalf("X = %v, Y = %v, want one row with humidity 0 -> 30", set.X, set.Y)
	}
}

func TestBuild_EmptyTrainingTable(t *testing.T) {
	if _, err := Build(nil, Training); !errors.Is(err, ErrEmptyTable) {
		t.Fatalf("Build(nil) err = %v, want ErrEmptyTable", err)
	}
}

func TestBuild_InferenceKeepsOrderAndDefaults(t *testing.T) {
	table := types.Table{
		{NodeID: "z", HumidityPercent: types.Float(5)},
		{NodeID: "a", HumidityPercent: types.Float(1), Hour: types.Int(13), DayOfWeek: types.Int(4)},
	}

	set, err := Build(table, Inference)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if set.Y != nil {
		t.Errorf("inference Y = %v, want nil", set.Y)
	}
	want := [][]float64{
		{5, 0, 0, 0, 0, 0, 0},
		{1, 0, 0, 0, 0, 13, 4},
	}
	if !reflect.DeepEqual(set.X, want) {
		t.Fatalf("X = %v, want %v", set.X, want)
	}
}

func TestBuild_SchemaParity(t *testing.T) {
	ts := time.Date(2025, 6, 8, 23, 30, 0, 0, time.UTC) // Sunday
	rows := types.Table{reading("n", ts, 40), reading("n", ts.Add(time.Hour), 41)}

	train, err := Build(rows, Training)
	if err != nil {
		t.Fatalf("Build training: %v", err)
	}
	infer, err := Build(rows[:1], Inference)
	if err != nil {
		t.Fatalf("Build inference: %v", err)
	}
	if !reflect.DeepEqual(train.Columns, infer.Columns) {
		t.Fatalf("columns differ: %v vs %v", train.Columns, infer.Columns)
	}
	if !reflect.DeepEqual(train.X[0], infer.X[0]) {
		t.Fatalf("rows differ: %v vs %v", train.X[0], infer.X[0])
	}
}

func TestRow_Temporal(t *testing.T) {
	tests := []struct {
		name    string
		r       types.Reading
		hour    float64
		weekday float64
	}{
		{
			name: "monday is zero",
			r:    types.Reading{CreatedAt: types.Time(time.Date(2025, 3, 3, 7, 0, 0, 0, time.UTC))},
			hour: 7, weekday: 0,
		},
		{
			name: "sunday is six",
			r:    types.Reading{CreatedAt: types.Time(time.Date(2025, 3, 9, 23, 59, 0, 0, time.UTC))},
			hour: 23, weekday: 6,
		},
		{
			name: "offset of the timestamp is kept",
			r:    types.Reading{CreatedAt: types.Time(time.Date(2025, 3, 4, 1, 0, 0, 0, time.FixedZone("ECT", -5*3600)))},
			hour: 1, weekday: 1,
		},
		{
			name: "timestamp overrides precomputed columns",
			r: types.Reading{
				CreatedAt: types.Time(time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)),
				Hour:      types.Int(3), DayOfWeek: types.Int(6),
			},
			hour: 10, weekday: 2,
		},
		{
			name: "precomputed columns without timestamp",
			r:    types.Reading{Hour: types.Int(17), DayOfWeek: types.Int(5)},
			hour: 17, weekday: 5,
		},
		{
			name: "nothing defaults to zero",
			r:    types.Reading{},
			hour: 0, weekday: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := Row(tt.r)
			if row[5] != tt.hour || row[6] != tt.weekday {
				t.Errorf("hour, day_of_week = %v, %v, want %v, %v", row[5], row[6], tt.hour, tt.weekday)
			}
		})
	}
}
