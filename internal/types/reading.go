package types

import "time"

// Reading is one soil sensor observation. A nil field is a value the source did not provide.
type Reading struct {
	NodeID           string     `json:"node_id"`
	CreatedAt        *time.Time `json:"createdAt,omitempty"`
	HumidityPercent  *float64   `json:"humidity_percent,omitempty"`
	RawValue         *float64   `json:"raw_value,omitempty"`
	RSSI             *float64   `json:"rssi,omitempty"`
	Voltage          *float64   `json:"voltage,omitempty"`
	SamplingInterval *float64   `json:"sampling_interval,omitempty"`

	// Hour and DayOfWeek are precomputed temporal columns. They are only
	// consulted when CreatedAt is absent.
	Hour      *int `json:"hour,omitempty"`
	DayOfWeek *int `json:"day_of_week,omitempty"`
}

// Table is a sequence of readings in source order. Nodes may be interleaved.
type Table []Reading

// Float returns a pointer to v, for building readings in code.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Time returns a pointer to v.
func Time(v time.Time) *time.Time { return &v }
