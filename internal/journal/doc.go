// Package journal records the collector's operational history: one row
// per poll cycle and a standing-alarm table for conditions that need an
// operator.
//
// The journal answers "has the collector been healthy" without touching
// the time-series store: cycle outcomes, reading counts, and decode
// warning counts live here, while the measurement values themselves go
// to VictoriaMetrics. Alarms are idempotent per kind so a suspended
// scheduler re-raising its alarm every interval does not flood the
// table.
//
// Timestamps are stored as RFC 3339 UTC strings.
package journal
