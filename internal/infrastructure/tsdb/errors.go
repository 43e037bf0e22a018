package tsdb

import "errors"

// Sentinel errors for time-series store operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, tsdb.ErrWriteFailed) {
//	    // Schedule a retry
//	}
var (
	// ErrNotConnected indicates the client is not connected to the store.
	ErrNotConnected = errors.New("tsdb: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("tsdb: connection failed")

	// ErrWriteFailed indicates a batch write failed after reaching the store.
	ErrWriteFailed = errors.New("tsdb: write failed")

	// ErrQueryFailed indicates a query was rejected or the response was
	// not a valid Prometheus API payload.
	ErrQueryFailed = errors.New("tsdb: query failed")
)
