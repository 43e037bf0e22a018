// Package tsdb provides the VictoriaMetrics client used by both daemons.
//
// VictoriaMetrics speaks several ingestion and query protocols on one
// base URL; this package uses exactly two of them. Writes go through the
// InfluxDB v2 compatible endpoint via the official InfluxDB client with
// blocking single-batch semantics, because the collector must know
// whether a cycle's samples landed before deciding to retry. Reads go
// through the Prometheus query API (instant and range PromQL queries)
// and are parsed into typed series so callers never handle the raw JSON
// encoding.
//
// All samples carry explicit timestamps. Combined with the store's
// last-write-wins behaviour for identical (series, tags, timestamp)
// keys, this makes batch retries idempotent.
package tsdb
