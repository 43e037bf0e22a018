// Package dps decodes vendor data points (DPS) into typed physical readings.
//
// The 8-in-1 water-quality tester reports its sub-measurements as numbered
// slots carrying raw integers; this package owns the static code table
// (metric name, scale, unit, plausible range) and the tolerant decoder
// that applies it. Decoding is pure: no I/O, no clock access beyond the
// caller-supplied cycle timestamp.
//
// The decoder never fails a whole batch. Unknown codes are skipped
// silently; implausible values are skipped with a warning. Both daemons
// read units and labels from the same table, so decode and documentation
// can never disagree.
package dps
