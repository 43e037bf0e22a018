package collector

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/seafront-labs/aquamon/internal/dps"
	"github.com/seafront-labs/aquamon/internal/infrastructure/config"
	"github.com/seafront-labs/aquamon/internal/infrastructure/logging"
	"github.com/seafront-labs/aquamon/internal/journal"
	"github.com/seafront-labs/aquamon/internal/observability/metrics"
	"github.com/seafront-labs/aquamon/internal/tuya"
)

// ReadingSink stores one cycle's decoded readings.
type ReadingSink interface {
	Store(ctx context.Context, readings []dps.Reading) error
}

// Announcer publishes readings to interested local subscribers. May be
// absent; announcing is best-effort and never affects the cycle outcome.
type Announcer interface {
	Announce(readings []dps.Reading)
}

// Journal records cycle outcomes and standing alarms.
type Journal interface {
	RecordCycle(ctx context.Context, c journal.Cycle) error
	RaiseAlarm(ctx context.Context, kind, detail string) error
	ClearAlarm(ctx context.Context, kind string) error
}

// Scheduler drives the poll loop: one cycle at a time, on a fixed
// interval, with bounded backoff on transient device failures and a
// hard stop on persistent ones.
//
// Cycles never overlap and missed ticks are skipped, not queued: the
// loop is sequential, and after a long cycle the next tick is computed
// from the last cycle's start so a stall produces a gap in the data
// rather than a burst of catch-up polls.
type Scheduler struct {
	source   Source
	sink     ReadingSink
	journal  Journal
	announce Announcer
	table    dps.Table
	cfg      config.PollConfig
	logger   *logging.Logger

	// now is swapped out in tests.
	now func() time.Time
}

// NewScheduler assembles the poll loop. announce may be nil.
func NewScheduler(source Source, sink ReadingSink, jrnl Journal, announce Announcer,
	table dps.Table, cfg config.PollConfig, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		source:   source,
		sink:     sink,
		journal:  jrnl,
		announce: announce,
		table:    table,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Run polls until the context ends. The first cycle starts immediately.
//
// Returns nil when stopped by context cancellation. The only other way
// out is a persistent device failure, which suspends polling after
// raising a standing alarm; Run then blocks until cancelled so the
// process stays up to serve its health and metrics endpoints.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.cfg.PollInterval()
	retryAttempt := 0

	next := s.now()
	for {
		if err := s.waitUntil(ctx, next); err != nil {
			return nil
		}

		cycleStart := s.now()
		outcome := s.runCycle(ctx)

		switch outcome {
		case journal.OutcomeSuccess, journal.OutcomeStoreFailure:
			// Store trouble does not change the device schedule.
			retryAttempt = 0
			next = s.nextTick(cycleStart, interval)

		case journal.OutcomeDeviceFailure:
			retryAttempt++
			if retryAttempt <= s.cfg.Backoff.MaxRetries {
				next = s.now().Add(s.withJitter(backoffDelay(s.cfg.Backoff, retryAttempt)))
				s.logger.Info("device poll failed, backing off",
					"attempt", retryAttempt, "next_attempt", next.Format(time.RFC3339))
				continue
			}
			// Retries exhausted: flag the device and settle back into
			// the normal cadence.
			if retryAttempt == s.cfg.Backoff.MaxRetries+1 {
				s.raiseAlarm(ctx, journal.AlarmDeviceOffline, "device unresponsive after backoff retries")
			}
			next = s.nextTick(cycleStart, interval)

		case journal.OutcomeSuspended:
			s.logger.Error("polling suspended, operator action required")
			<-ctx.Done()
			return nil
		}
	}
}

// runCycle executes one poll cycle end to end and returns its outcome.
func (s *Scheduler) runCycle(ctx context.Context) string {
	start := s.now()

	points, err := s.source.Poll(ctx)
	if err != nil {
		return s.handleDeviceError(ctx, start, err)
	}

	readings, warnings := dps.Decode(points, s.table, start)
	for _, w := range warnings {
		s.logger.Warn("dropping implausible data point",
			"code", w.Code, "raw", w.Raw, "reason", w.Reason)
	}
	metrics.AddDecodeWarnings(len(warnings))
	metrics.AddReadings(len(readings))

	outcome := journal.OutcomeSuccess
	detail := ""
	if err := s.sink.Store(ctx, readings); err != nil {
		if !errors.Is(err, ErrBatchDropped) {
			// Context cancelled mid-retry; not a store verdict.
			return journal.OutcomeStoreFailure
		}
		outcome = journal.OutcomeStoreFailure
		detail = err.Error()
		s.raiseAlarm(ctx, journal.AlarmStoreOutage, detail)
	} else {
		s.clearAlarm(ctx, journal.AlarmStoreOutage)
	}

	if outcome == journal.OutcomeSuccess {
		s.clearAlarm(ctx, journal.AlarmDeviceOffline)
		if s.announce != nil {
			s.announce.Announce(readings)
		}
	}

	s.recordCycle(ctx, journal.Cycle{
		StartedAt: start,
		Outcome:   outcome,
		Readings:  len(readings),
		Warnings:  len(warnings),
		Detail:    detail,
	})
	metrics.ObservePollCycle(outcome, s.now().Sub(start))

	s.logger.Info("poll cycle complete",
		"outcome", outcome, "readings", len(readings), "warnings", len(warnings),
		"duration", s.now().Sub(start).String())
	return outcome
}

// handleDeviceError journals a failed poll and classifies it.
func (s *Scheduler) handleDeviceError(ctx context.Context, start time.Time, err error) string {
	outcome := journal.OutcomeDeviceFailure
	if tuya.IsPersistent(err) {
		outcome = journal.OutcomeSuspended
		s.raiseAlarm(ctx, journal.AlarmAuthFailure, err.Error())
	}

	s.recordCycle(ctx, journal.Cycle{
		StartedAt: start,
		Outcome:   outcome,
		Detail:    err.Error(),
	})
	metrics.ObservePollCycle(outcome, s.now().Sub(start))

	s.logger.Warn("poll cycle failed", "outcome", outcome, "error", err)
	return outcome
}

// nextTick advances from the cycle start to the first future tick,
// skipping any that passed while the cycle ran.
func (s *Scheduler) nextTick(cycleStart time.Time, interval time.Duration) time.Time {
	next := cycleStart.Add(interval)
	now := s.now()
	for !next.After(now) {
		next = next.Add(interval)
	}
	return next.Add(s.jitter())
}

// waitUntil blocks until t or context cancellation.
func (s *Scheduler) waitUntil(ctx context.Context, t time.Time) error {
	d := t.Sub(s.now())
	if d <= 0 {
		return ctx.Err()
	}
	return sleepCtx(ctx, d)
}

// jitter returns a random delay in [0, cfg.Jitter] seconds, spreading
// polls so co-located collectors do not hit the device in lockstep.
func (s *Scheduler) jitter() time.Duration {
	if s.cfg.Jitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(s.cfg.Jitter)*int64(time.Second) + 1))
}

func (s *Scheduler) withJitter(d time.Duration) time.Duration {
	return d + s.jitter()
}

// backoffDelay computes the delay before backed-off attempt n (1-based):
// the initial delay doubled per attempt, capped at the configured max.
func backoffDelay(cfg config.BackoffConfig, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(cfg.InitialDelay) * time.Second
	maxDelay := time.Duration(cfg.MaxDelay) * time.Second

	for i := 1; i < attempt; i++ {
		delay *= 2
		if maxDelay > 0 && delay >= maxDelay {
			return maxDelay
		}
	}
	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}
	return delay
}

// recordCycle journals a cycle, logging rather than failing on error:
// a broken journal must not stop data collection.
func (s *Scheduler) recordCycle(ctx context.Context, c journal.Cycle) {
	if err := s.journal.RecordCycle(ctx, c); err != nil {
		s.logger.Error("recording cycle failed", "error", err)
	}
}

func (s *Scheduler) raiseAlarm(ctx context.Context, kind, detail string) {
	if err := s.journal.RaiseAlarm(ctx, kind, detail); err != nil {
		s.logger.Error("raising alarm failed", "kind", kind, "error", err)
	}
	metrics.SetAlarmActive(kind, true)
}

func (s *Scheduler) clearAlarm(ctx context.Context, kind string) {
	if err := s.journal.ClearAlarm(ctx, kind); err != nil {
		s.logger.Error("clearing alarm failed", "kind", kind, "error", err)
	}
	metrics.SetAlarmActive(kind, false)
}
