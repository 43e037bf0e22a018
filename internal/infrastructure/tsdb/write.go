package tsdb

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Point is one sample destined for the store: a series name, its
// identifying tags, a value, and the explicit timestamp it belongs to.
//
// Timestamps are always carried explicitly rather than assigned at write
// time. The store keys samples on (series, tags, timestamp), so retrying
// a batch that partially landed overwrites the same samples instead of
// duplicating them.
type Point struct {
	Series string
	Tags   map[string]string
	Value  float64
	Time   time.Time
}

// WriteBatch writes all points synchronously as a single request.
//
// The batch either lands or the caller gets an error to retry; there is
// no internal buffering. Points within a batch are sent in the order
// given, though the store does not care.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - points: Samples to write; an empty batch is a no-op
//
// Returns:
//   - error: ErrNotConnected before Connect or after Close,
//     ErrWriteFailed wrapping the transport error otherwise
func (c *Client) WriteBatch(ctx context.Context, points []Point) error {
	if c == nil || !c.IsConnected() {
		return ErrNotConnected
	}
	if len(points) == 0 {
		return nil
	}

	batch := make([]*write.Point, 0, len(points))
	for _, p := range points {
		batch = append(batch, influxdb2.NewPoint(
			p.Series,
			p.Tags,
			map[string]interface{}{"value": p.Value},
			p.Time,
		))
	}

	if err := c.writeAPI.WritePoint(ctx, batch...); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
