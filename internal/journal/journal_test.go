package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/seafront-labs/aquamon/internal/infrastructure/config"
	"github.com/seafront-labs/aquamon/internal/infrastructure/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Open(config.JournalConfig{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := New(db)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestRecordCycle_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cycles := []Cycle{
		{StartedAt: start, Outcome: OutcomeSuccess, Readings: 7},
		{StartedAt: start.Add(5 * time.Minute), Outcome: OutcomeDeviceFailure, Detail: "request timed out"},
		{StartedAt: start.Add(10 * time.Minute), Outcome: OutcomeSuccess, Readings: 6, Warnings: 1},
	}
	for _, c := range cycles {
		if err := store.RecordCycle(ctx, c); err != nil {
			t.Fatalf("RecordCycle: %v", err)
		}
	}

	got, err := store.RecentCycles(ctx, 10)
	if err != nil {
		t.Fatalf("RecentCycles: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d cycles, want 3", len(got))
	}
	// Newest first.
	if got[0].Warnings != 1 || got[0].Outcome != OutcomeSuccess {
		t.Errorf("newest cycle = %+v", got[0])
	}
	if got[1].Outcome != OutcomeDeviceFailure || got[1].Detail != "request timed out" {
		t.Errorf("middle cycle = %+v", got[1])
	}
	if !got[2].StartedAt.Equal(start) {
		t.Errorf("oldest StartedAt = %v, want %v", got[2].StartedAt, start)
	}
}

func TestRecentCycles_Limit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.RecordCycle(ctx, Cycle{StartedAt: time.Now(), Outcome: OutcomeSuccess}); err != nil {
			t.Fatalf("RecordCycle: %v", err)
		}
	}

	got, err := store.RecentCycles(ctx, 2)
	if err != nil {
		t.Fatalf("RecentCycles: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d cycles, want 2", len(got))
	}
}

func TestRaiseAlarm_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.RaiseAlarm(ctx, AlarmAuthFailure, "authentication failed"); err != nil {
		t.Fatalf("RaiseAlarm: %v", err)
	}
	// Re-raising updates detail instead of creating a second row.
	if err := store.RaiseAlarm(ctx, AlarmAuthFailure, "still failing"); err != nil {
		t.Fatalf("RaiseAlarm again: %v", err)
	}

	active, err := store.ActiveAlarms(ctx)
	if err != nil {
		t.Fatalf("ActiveAlarms: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("got %d active alarms, want 1", len(active))
	}
	if active[0].Detail != "still failing" {
		t.Errorf("detail = %q, want refreshed detail", active[0].Detail)
	}
}

func TestClearAlarm(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.RaiseAlarm(ctx, AlarmStoreOutage, "store unreachable"); err != nil {
		t.Fatalf("RaiseAlarm: %v", err)
	}
	if err := store.ClearAlarm(ctx, AlarmStoreOutage); err != nil {
		t.Fatalf("ClearAlarm: %v", err)
	}

	active, err := store.ActiveAlarms(ctx)
	if err != nil {
		t.Fatalf("ActiveAlarms: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("got %d active alarms, want 0", len(active))
	}

	// Clearing an already-clear kind is a no-op.
	if err := store.ClearAlarm(ctx, AlarmStoreOutage); err != nil {
		t.Errorf("ClearAlarm on clear kind: %v", err)
	}

	// Raising after clearing creates a fresh row, visible in history.
	if err := store.RaiseAlarm(ctx, AlarmStoreOutage, "down again"); err != nil {
		t.Fatalf("RaiseAlarm after clear: %v", err)
	}
	history, err := store.AlarmHistory(ctx, 10)
	if err != nil {
		t.Fatalf("AlarmHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d history rows, want 2", len(history))
	}
	if history[0].ClearedAt != nil {
		t.Error("newest alarm must still be active")
	}
	if history[1].ClearedAt == nil {
		t.Error("oldest alarm must be cleared")
	}
}

func TestActiveAlarms_IndependentKinds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.RaiseAlarm(ctx, AlarmAuthFailure, "a"); err != nil {
		t.Fatal(err)
	}
	if err := store.RaiseAlarm(ctx, AlarmDeviceOffline, "b"); err != nil {
		t.Fatal(err)
	}
	if err := store.ClearAlarm(ctx, AlarmAuthFailure); err != nil {
		t.Fatal(err)
	}

	active, err := store.ActiveAlarms(ctx)
	if err != nil {
		t.Fatalf("ActiveAlarms: %v", err)
	}
	if len(active) != 1 || active[0].Kind != AlarmDeviceOffline {
		t.Errorf("active = %+v, want only device_offline", active)
	}
}
