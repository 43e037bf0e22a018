package dps

import "sort"

// Mapping describes one vendor data point: how its raw integer value is
// scaled into a physical quantity and where it is stored.
//
// Scale factors are expressed as integer divisors so decoding stays exact
// for the vendor's published fixed-point encodings (×0.1 is divisor 10,
// and so on).
type Mapping struct {
	// Metric is the short metric key used throughout the API ("temperature").
	Metric string

	// Series is the time-series name in the store ("aquarium_temperature_celsius").
	Series string

	// Label is the human-facing name used in exports ("Temperature").
	Label string

	// Unit is the physical unit, empty for dimensionless quantities.
	Unit string

	// Divisor converts the raw integer to the physical value (value = raw / divisor).
	Divisor int64

	// MinRaw and MaxRaw bound the plausible raw range; values outside are
	// dropped with a decode warning rather than stored.
	MinRaw int64
	MaxRaw int64
}

// SensorTag identifies the sensor model on every stored sample. Kept
// stable so dashboards and recorded data survive code changes.
const SensorTag = "seafront_8in1"

// Table maps vendor data-point codes to their physical interpretation.
type Table map[int]Mapping

// DefaultTable is the data-point map published by the 8-in-1 water-quality
// tester. It is the single source of truth for decoding, for the metric
// catalog endpoint, and for export column headers.
//
// Codes, scales, and units are fixed by the vendor firmware; the plausible
// raw ranges bound what the sensor can physically report (pH is encoded
// as hundredths, so 0-1400 covers the 0-14 scale).
var DefaultTable = Table{
	8:   {Metric: "temperature", Series: "aquarium_temperature_celsius", Label: "Temperature", Unit: "°C", Divisor: 10, MinRaw: -200, MaxRaw: 1000},
	106: {Metric: "ph", Series: "aquarium_ph", Label: "pH", Unit: "", Divisor: 100, MinRaw: 0, MaxRaw: 1400},
	111: {Metric: "tds", Series: "aquarium_tds_ppm", Label: "TDS", Unit: "ppm", Divisor: 1, MinRaw: 0, MaxRaw: 20000},
	116: {Metric: "ec", Series: "aquarium_ec_uscm", Label: "EC (Conductivity)", Unit: "µS/cm", Divisor: 1, MinRaw: 0, MaxRaw: 20000},
	121: {Metric: "salinity", Series: "aquarium_salinity_ppm", Label: "Salinity", Unit: "ppm", Divisor: 1, MinRaw: 0, MaxRaw: 50000},
	126: {Metric: "specific_gravity", Series: "aquarium_specific_gravity", Label: "Specific Gravity", Unit: "", Divisor: 1000, MinRaw: 900, MaxRaw: 1300},
	131: {Metric: "orp", Series: "aquarium_orp_mv", Label: "ORP", Unit: "mV", Divisor: 1, MinRaw: -2000, MaxRaw: 2000},
}

// Metrics returns the metric keys of the table in stable (sorted) order.
func (t Table) Metrics() []string {
	metrics := make([]string, 0, len(t))
	for _, m := range t {
		metrics = append(metrics, m.Metric)
	}
	sort.Strings(metrics)
	return metrics
}

// ByMetric returns the mapping for a metric key, if it exists.
func (t Table) ByMetric(metric string) (Mapping, bool) {
	for _, m := range t {
		if m.Metric == metric {
			return m, true
		}
	}
	return Mapping{}, false
}

// Ordered returns the table's mappings sorted by metric key. Exports and
// the catalog endpoint use this so column order is deterministic.
func (t Table) Ordered() []Mapping {
	mappings := make([]Mapping, 0, len(t))
	for _, m := range t {
		mappings = append(mappings, m)
	}
	sort.Slice(mappings, func(i, j int) bool { return mappings[i].Metric < mappings[j].Metric })
	return mappings
}
