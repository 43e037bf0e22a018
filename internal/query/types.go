package query

import (
	"time"

	"github.com/seafront-labs/aquamon/internal/dps"
)

// TimedValue is one sample in a query result.
type TimedValue struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// RangeRequest asks for one metric's history over a window, downsampled
// to at most Resolution points.
type RangeRequest struct {
	Metric     string
	Start      time.Time
	End        time.Time
	Resolution int
}

// RangeResult is a downsampled slice of one metric's history.
type RangeResult struct {
	Metric string       `json:"metric"`
	Unit   string       `json:"unit,omitempty"`
	Bucket int64        `json:"bucket_seconds"`
	Points []TimedValue `json:"points"`
}

// LatestResult is the most recent stored value of one metric.
type LatestResult struct {
	Metric    string    `json:"metric"`
	Unit      string    `json:"unit,omitempty"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// ExportRequest asks for the full-resolution dataset over a window.
type ExportRequest struct {
	Start time.Time
	End   time.Time
}

// ExportRow is one timestamp's values across all metrics. A nil entry
// means that metric has no sample at that timestamp; exports render it
// as an explicit empty cell rather than interpolating.
type ExportRow struct {
	Timestamp time.Time
	Values    []*float64
}

// Dataset is a joined, column-ordered export: Columns[i] describes
// Values[i] of every row.
type Dataset struct {
	Columns []dps.Mapping
	Rows    []ExportRow
}
