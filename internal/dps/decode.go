package dps

import (
	"fmt"
	"time"
)

// RawDataPoint is one wire-level data point from a device status response:
// a numeric code and the raw integer it carried. It exists only for the
// duration of one poll cycle.
type RawDataPoint struct {
	Code int
	Raw  int64
}

// Reading is a decoded, typed measurement ready for the sink.
//
// The timestamp is assigned at decode time, not by the device; every
// reading from one cycle carries the same timestamp.
type Reading struct {
	Metric    string
	Series    string
	Unit      string
	Value     float64
	Timestamp time.Time
}

// Warning records a data point that was dropped during decoding.
// Warnings never abort the cycle; they are logged and counted.
type Warning struct {
	Code   int
	Raw    int64
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("dp %d (raw %d): %s", w.Code, w.Raw, w.Reason)
}

// Decode maps raw data points to typed readings using the given table.
//
// Behaviour:
//   - Codes absent from the table are silently skipped (devices report
//     vendor-internal points we don't model).
//   - Raw values outside the mapping's plausible range produce a Warning
//     and are skipped.
//   - A bad individual point never affects the rest of the batch.
//
// Parameters:
//   - points: Raw data points from one status response
//   - table: Code mapping (normally DefaultTable)
//   - at: Timestamp to stamp on every reading (the cycle timestamp)
//
// Returns:
//   - []Reading: Decoded readings, in input order
//   - []Warning: One entry per dropped out-of-range point
func Decode(points []RawDataPoint, table Table, at time.Time) ([]Reading, []Warning) {
	readings := make([]Reading, 0, len(points))
	var warnings []Warning

	for _, p := range points {
		m, ok := table[p.Code]
		if !ok {
			continue
		}

		if p.Raw < m.MinRaw || p.Raw > m.MaxRaw {
			warnings = append(warnings, Warning{
				Code:   p.Code,
				Raw:    p.Raw,
				Reason: fmt.Sprintf("%s out of range [%d, %d]", m.Metric, m.MinRaw, m.MaxRaw),
			})
			continue
		}

		readings = append(readings, Reading{
			Metric:    m.Metric,
			Series:    m.Series,
			Unit:      m.Unit,
			Value:     float64(p.Raw) / float64(m.Divisor),
			Timestamp: at,
		})
	}

	return readings, warnings
}
