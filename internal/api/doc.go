// Package api provides the HTTP REST API for recorded water-quality data.
//
// It exposes downsampled range queries, latest readings, spreadsheet
// exports, and the collector's cycle and alarm journal to dashboards
// and scripts on the local network.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
