package mqtt

import (
	"encoding/json"
	"time"

	"github.com/seafront-labs/aquamon/internal/dps"
	"github.com/seafront-labs/aquamon/internal/infrastructure/logging"
)

// Announcer publishes each successful cycle's readings as a retained
// JSON snapshot. Publishing is best-effort: a broker outage costs
// subscribers freshness, never the collector a cycle.
type Announcer struct {
	client *Client
	logger *logging.Logger
}

// NewAnnouncer wraps a connected client.
func NewAnnouncer(client *Client, logger *logging.Logger) *Announcer {
	return &Announcer{client: client, logger: logger}
}

// readingSnapshot is the wire shape of one metric in the announce payload.
type readingSnapshot struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// Announce publishes the cycle's readings to the retained readings topic.
func (a *Announcer) Announce(readings []dps.Reading) {
	if a == nil || a.client == nil || len(readings) == 0 {
		return
	}

	snapshot := make(map[string]readingSnapshot, len(readings))
	for _, r := range readings {
		snapshot[r.Metric] = readingSnapshot{Value: r.Value, Unit: r.Unit}
	}

	payload, err := json.Marshal(struct {
		Sensor    string                     `json:"sensor"`
		Timestamp string                     `json:"timestamp"`
		Readings  map[string]readingSnapshot `json:"readings"`
	}{
		Sensor:    dps.SensorTag,
		Timestamp: readings[0].Timestamp.UTC().Format(time.RFC3339),
		Readings:  snapshot,
	})
	if err != nil {
		a.logger.Error("encoding readings announce failed", "error", err)
		return
	}

	if err := a.client.PublishRetained(a.client.topics.Readings(), payload); err != nil {
		a.logger.Warn("readings announce failed", "error", err)
	}
}
