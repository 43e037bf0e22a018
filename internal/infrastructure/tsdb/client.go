package tsdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/seafront-labs/aquamon/internal/infrastructure/config"
)

// Default timeouts for store operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultHealthTimeout  = 5 * time.Second
	defaultQueryTimeout   = 30 * time.Second
)

// Client talks to VictoriaMetrics over its two native surfaces: the
// InfluxDB-compatible write API for ingest and the Prometheus query API
// for reads. Both share the same base URL.
//
// Writes are synchronous. The collector writes one small batch per poll
// cycle and needs to know whether it landed, so the fire-and-forget
// batching a typical ingest pipeline would use has no place here.
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
type Client struct {
	url        string
	writeAPI   api.WriteAPIBlocking
	influx     influxdb2.Client
	httpClient *http.Client

	connected bool
	mu        sync.RWMutex
}

// Connect establishes a connection to VictoriaMetrics.
//
// It performs the following:
//  1. Creates the InfluxDB v2 client with nanosecond write precision
//  2. Verifies connectivity via GET /health
//  3. Configures the blocking write API
//
// Parameters:
//   - ctx: Context for cancellation (used for the health check)
//   - cfg: Store configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrConnectionFailed if the store is unreachable
func Connect(ctx context.Context, cfg config.TSDBConfig) (*Client, error) {
	url := strings.TrimRight(cfg.URL, "/")

	influx := influxdb2.NewClientWithOptions(
		url,
		cfg.Token,
		influxdb2.DefaultOptions().SetPrecision(time.Nanosecond),
	)

	c := &Client{
		url:      url,
		influx:   influx,
		writeAPI: influx.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		httpClient: &http.Client{
			Timeout: defaultQueryTimeout,
		},
		connected: true,
	}

	healthCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	if err := c.HealthCheck(healthCtx); err != nil {
		c.connected = false
		influx.Close()
		return nil, fmt.Errorf("%w: health check failed: %w", ErrConnectionFailed, err)
	}

	return c, nil
}

// Close shuts down the store connection. Safe to call twice.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.influx.Close()
	return nil
}

// HealthCheck verifies the VictoriaMetrics connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, defaultHealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, c.url+"/health", nil)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}
	defer resp.Body.Close()
	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tsdb health check: status %d", resp.StatusCode)
	}

	return nil
}

// IsConnected returns the current connection state.
//
// Note: This reflects the last known state. For reliability,
// use HealthCheck which performs an active ping.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
