package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"soilnet-ml/internal/types"
)

// Columns is the canonical CSV header, in the order WriteCSV emits it.
var Columns = []string{
	"node_id", "createdAt", "humidity_percent", "raw_value", "rssi",
	"voltage", "sampling_interval", "hour", "day_of_week",
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

type CSVSource struct {
	path string
}

func NewCSV(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (s *CSVSource) Describe() string { return s.path }

func (s *CSVSource) Load(_ context.Context) (types.Table, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("dataset %s: %w", s.path, types.ErrInputMissing)
		}
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	table, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return table, nil
}

// ReadCSV parses a header-led CSV of readings. Unknown columns are ignored and
// empty cells are absent values.
func ReadCSV(r io.Reader) (types.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, fmt.Errorf("header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var table types.Table
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := rowReader{rec: rec, index: index, line: line}
		rd := types.Reading{
			NodeID:           row.cell("node_id"),
			CreatedAt:        row.timeCell("createdAt"),
			HumidityPercent:  row.floatCell("humidity_percent"),
			RawValue:         row.floatCell("raw_value"),
			RSSI:             row.floatCell("rssi"),
			Voltage:          row.floatCell("voltage"),
			SamplingInterval: row.floatCell("sampling_interval"),
			Hour:             row.intCell("hour"),
			DayOfWeek:        row.intCell("day_of_week"),
		}
		if row.err != nil {
			return nil, row.err
		}
		table = append(table, rd)
	}
	return table, nil
}

// WriteCSV writes table with the canonical header.
func WriteCSV(w io.Writer, table types.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	rec := make([]string, len(Columns))
	for _, rd := range table {
		rec[0] = rd.NodeID
		rec[1] = ""
		if rd.CreatedAt != nil {
			rec[1] = rd.CreatedAt.Format(time.RFC3339Nano)
		}
		rec[2] = formatFloat(rd.HumidityPercent)
		rec[3] = formatFloat(rd.RawValue)
		rec[4] = formatFloat(rd.RSSI)
		rec[5] = formatFloat(rd.Voltage)
		rec[6] = formatFloat(rd.SamplingInterval)
		rec[7] = formatInt(rd.Hour)
		rec[8] = formatInt(rd.DayOfWeek)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// rowReader keeps the first parse error of a record.
type rowReader struct {
	rec   []string
	index map[string]int
	line  int
	err   error
}

func (r *rowReader) cell(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r *rowReader) fail(col, v string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("line %d column %s: %q: %w", r.line, col, v, err)
	}
}

func (r *rowReader) floatCell(col string) *float64 {
	v := r.cell(col)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(col, v, err)
		return nil
	}
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

func (r *rowReader) intCell(col string) *int {
	v := r.cell(col)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		// Exported frames often write integral columns as 8.0.
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil || f != math.Trunc(f) {
			r.fail(col, v, err)
			return nil
		}
		n = int(f)
	}
	return &n
}

func (r *rowReader) timeCell(col string) *time.Time {
	v := r.cell(col)
	if v == "" {
		return nil
	}
	t, err := parseTime(v)
	if err != nil {
		r.fail(col, v, err)
		return nil
	}
	return &t
}

func parseTime(v string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized timestamp")
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
