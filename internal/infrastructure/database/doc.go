// Package database manages the SQLite connection backing the poll-cycle
// journal.
//
// It owns connection-string construction (WAL mode, busy timeout,
// foreign keys), directory and file permissions, and lifecycle. Schema
// and queries live in the journal package; this one only hands out a
// verified connection.
package database
