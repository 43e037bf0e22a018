package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/seafront-labs/aquamon/internal/infrastructure/database"
)

// Cycle outcomes recorded in the journal.
const (
	OutcomeSuccess       = "success"
	OutcomeDeviceFailure = "device_failure"
	OutcomeStoreFailure  = "store_failure"
	OutcomeSuspended     = "suspended"
)

// Alarm kinds. One active alarm exists per kind at most; raising an
// already-active kind updates its detail instead of duplicating it.
const (
	AlarmAuthFailure   = "device_auth_failure"
	AlarmStoreOutage   = "store_outage"
	AlarmDeviceOffline = "device_offline"
)

// Cycle is one poll cycle's journal entry.
type Cycle struct {
	ID        int64     `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Outcome   string    `json:"outcome"`
	Readings  int       `json:"readings"`
	Warnings  int       `json:"warnings"`
	Detail    string    `json:"detail,omitempty"`
}

// Alarm is a standing operator-facing condition.
type Alarm struct {
	ID        int64      `json:"id"`
	Kind      string     `json:"kind"`
	Detail    string     `json:"detail"`
	RaisedAt  time.Time  `json:"raised_at"`
	ClearedAt *time.Time `json:"cleared_at,omitempty"`
}

// Store persists poll cycles and alarms in the journal database.
type Store struct {
	db *database.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS poll_cycles (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	readings   INTEGER NOT NULL DEFAULT 0,
	warnings   INTEGER NOT NULL DEFAULT 0,
	detail     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_poll_cycles_started_at ON poll_cycles(started_at);

CREATE TABLE IF NOT EXISTS alarms (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	kind       TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	raised_at  TEXT NOT NULL,
	cleared_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_alarms_kind_active ON alarms(kind) WHERE cleared_at IS NULL;
`

// New initialises the journal schema and returns a store.
func New(db *database.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("initialising journal schema: %w", err)
	}
	return &Store{db: db}, nil
}

// RecordCycle appends one poll cycle entry.
func (s *Store) RecordCycle(ctx context.Context, c Cycle) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO poll_cycles (started_at, outcome, readings, warnings, detail) VALUES (?, ?, ?, ?, ?)`,
		c.StartedAt.UTC().Format(time.RFC3339), c.Outcome, c.Readings, c.Warnings, c.Detail,
	)
	if err != nil {
		return fmt.Errorf("recording cycle: %w", err)
	}
	return nil
}

// RecentCycles returns the most recent cycles, newest first.
func (s *Store) RecentCycles(ctx context.Context, limit int) ([]Cycle, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, outcome, readings, warnings, detail
		 FROM poll_cycles ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying cycles: %w", err)
	}
	defer rows.Close()

	cycles := make([]Cycle, 0, limit)
	for rows.Next() {
		var c Cycle
		var startedAt string
		if err := rows.Scan(&c.ID, &startedAt, &c.Outcome, &c.Readings, &c.Warnings, &c.Detail); err != nil {
			return nil, fmt.Errorf("scanning cycle: %w", err)
		}
		c.StartedAt, err = time.Parse(time.RFC3339, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing cycle timestamp %q: %w", startedAt, err)
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// RaiseAlarm raises (or refreshes) the standing alarm of the given kind.
//
// Idempotent: if an uncleared alarm of this kind exists, its detail is
// updated in place and no new row is created.
func (s *Store) RaiseAlarm(ctx context.Context, kind, detail string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alarms SET detail = ? WHERE kind = ? AND cleared_at IS NULL`,
		detail, kind)
	if err != nil {
		return fmt.Errorf("refreshing alarm: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO alarms (kind, detail, raised_at) VALUES (?, ?, ?)`,
		kind, detail, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("raising alarm: %w", err)
	}
	return nil
}

// ClearAlarm clears the active alarm of the given kind, if any.
func (s *Store) ClearAlarm(ctx context.Context, kind string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE alarms SET cleared_at = ? WHERE kind = ? AND cleared_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339), kind)
	if err != nil {
		return fmt.Errorf("clearing alarm: %w", err)
	}
	return nil
}

// ActiveAlarms returns all uncleared alarms, oldest first.
func (s *Store) ActiveAlarms(ctx context.Context) ([]Alarm, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, detail, raised_at FROM alarms WHERE cleared_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying alarms: %w", err)
	}
	defer rows.Close()

	var alarms []Alarm
	for rows.Next() {
		var a Alarm
		var raisedAt string
		if err := rows.Scan(&a.ID, &a.Kind, &a.Detail, &raisedAt); err != nil {
			return nil, fmt.Errorf("scanning alarm: %w", err)
		}
		a.RaisedAt, err = time.Parse(time.RFC3339, raisedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing alarm timestamp %q: %w", raisedAt, err)
		}
		alarms = append(alarms, a)
	}
	return alarms, rows.Err()
}

// scanNullTime converts a nullable RFC3339 column.
func scanNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// AlarmHistory returns the most recent alarms including cleared ones,
// newest first.
func (s *Store) AlarmHistory(ctx context.Context, limit int) ([]Alarm, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, detail, raised_at, cleared_at
		 FROM alarms ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying alarm history: %w", err)
	}
	defer rows.Close()

	alarms := make([]Alarm, 0, limit)
	for rows.Next() {
		var a Alarm
		var raisedAt string
		var clearedAt sql.NullString
		if err := rows.Scan(&a.ID, &a.Kind, &a.Detail, &raisedAt, &clearedAt); err != nil {
			return nil, fmt.Errorf("scanning alarm: %w", err)
		}
		a.RaisedAt, err = time.Parse(time.RFC3339, raisedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing alarm timestamp %q: %w", raisedAt, err)
		}
		a.ClearedAt, err = scanNullTime(clearedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing alarm cleared timestamp: %w", err)
		}
		alarms = append(alarms, a)
	}
	return alarms, rows.Err()
}
