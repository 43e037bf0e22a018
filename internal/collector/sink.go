package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/seafront-labs/aquamon/internal/dps"
	"github.com/seafront-labs/aquamon/internal/infrastructure/config"
	"github.com/seafront-labs/aquamon/internal/infrastructure/logging"
	"github.com/seafront-labs/aquamon/internal/infrastructure/tsdb"
	"github.com/seafront-labs/aquamon/internal/observability/metrics"
)

// StoreWriter is the slice of the time-series client the sink needs.
type StoreWriter interface {
	WriteBatch(ctx context.Context, points []tsdb.Point) error
}

// Sink forwards one cycle's readings to the time-series store as a
// single batch, retrying with doubling backoff and dropping the batch
// once attempts are exhausted.
//
// There is no buffer-and-replay path: every sample carries its cycle
// timestamp, so a store outage longer than the retry budget loses those
// cycles' data but never delays or reorders later cycles. The drop is
// loud (log, metric, journal entry via the scheduler) so the gap is
// explainable.
type Sink struct {
	store  StoreWriter
	cfg    config.SinkConfig
	logger *logging.Logger

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSink creates a sink writing through the given store client.
func NewSink(store StoreWriter, cfg config.SinkConfig, logger *logging.Logger) *Sink {
	return &Sink{
		store:  store,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Store writes the readings as one batch, retrying on failure.
//
// Parameters:
//   - ctx: Context for cancellation; aborting mid-retry returns ctx.Err()
//   - readings: The cycle's decoded readings; empty is a no-op
//
// Returns:
//   - error: nil once the batch lands, ErrBatchDropped after exhausting
//     retries, or ctx.Err() if cancelled while waiting to retry
func (s *Sink) Store(ctx context.Context, readings []dps.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	points := toPoints(readings)

	attempts := s.cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := time.Duration(s.cfg.RetryBackoff) * time.Second

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		err := s.writeOnce(ctx, points)
		if err == nil {
			metrics.ObserveStoreWrite(metrics.ResultSuccess, time.Since(start))
			return nil
		}
		metrics.ObserveStoreWrite(metrics.ResultError, time.Since(start))
		lastErr = err

		if attempt < attempts {
			metrics.IncStoreRetry()
			s.logger.Warn("store write failed, retrying",
				"attempt", attempt, "max_attempts", attempts,
				"retry_in", delay.String(), "error", err)
			if err := s.sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 2
		}
	}

	metrics.IncStoreDrop()
	s.logger.Error("dropping batch after retry exhaustion",
		"attempts", attempts, "readings", len(readings), "error", lastErr)
	return fmt.Errorf("%w: %d attempts: %v", ErrBatchDropped, attempts, lastErr)
}

// writeOnce performs a single bounded write attempt.
func (s *Sink) writeOnce(ctx context.Context, points []tsdb.Point) error {
	timeout := time.Duration(s.cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	writeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return s.store.WriteBatch(writeCtx, points)
}

// toPoints converts decoded readings into store points. The timestamps
// travel with the points, which is what makes a retried batch overwrite
// rather than duplicate.
func toPoints(readings []dps.Reading) []tsdb.Point {
	points := make([]tsdb.Point, 0, len(readings))
	for _, r := range readings {
		points = append(points, tsdb.Point{
			Series: r.Series,
			Tags:   map[string]string{"sensor": dps.SensorTag},
			Value:  r.Value,
			Time:   r.Timestamp,
		})
	}
	return points
}

// sleepCtx sleeps for d or until the context ends, whichever is first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
