// Package metrics exposes the process's own Prometheus instrumentation:
// poll cycle outcomes, store write health, and query API traffic. These
// describe the pipeline itself, not the water; aquarium measurements go
// to the time-series store through the sink.
package metrics
