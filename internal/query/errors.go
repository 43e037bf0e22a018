package query

import "errors"

// Sentinel errors for query operations. The API layer maps these onto
// HTTP status codes.
var (
	// ErrUnknownMetric indicates a metric key outside the sensor's table.
	ErrUnknownMetric = errors.New("query: unknown metric")

	// ErrInvalidRange indicates an empty, inverted, or oversized time range.
	ErrInvalidRange = errors.New("query: invalid time range")

	// ErrInvalidResolution indicates a non-positive or oversized resolution.
	ErrInvalidResolution = errors.New("query: invalid resolution")

	// ErrStoreUnavailable indicates the time-series store could not answer.
	ErrStoreUnavailable = errors.New("query: store unavailable")
)
