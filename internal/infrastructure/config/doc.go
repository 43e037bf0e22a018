// Package config provides configuration loading for the aquamon daemons.
//
// Both the collector and the query service read the same YAML file; each
// daemon uses the sections relevant to it. Values load in three layers:
// hardcoded defaults, the YAML file, then AQUAMON_* environment variables.
//
// The device credentials (id, address, local_key, protocol_version) are
// produced out-of-band by the interactive setup wizard and are treated as
// immutable for the process lifetime.
//
// Example:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
