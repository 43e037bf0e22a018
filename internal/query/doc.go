// Package query answers read requests over the recorded water-quality
// history: downsampled ranges, latest values, and full-resolution
// exports joined across metrics.
//
// All heavy lifting is delegated to the time-series store via PromQL.
// The service's own job is determinism: epoch-aligned bucket boundaries,
// stable metric ordering from the data-point table, and explicit nulls
// in exports instead of interpolation. Two identical requests made at
// different times return identical data for the overlapping window.
package query
