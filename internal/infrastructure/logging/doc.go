// Package logging provides structured logging for the aquamon daemons.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across both daemons.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Security
//
// Never log the device local key or MQTT credentials. Log the device ID
// and address instead when identifying the endpoint.
package logging
