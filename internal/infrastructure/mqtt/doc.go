// Package mqtt publishes the collector's presence and latest readings to
// a local broker.
//
// This is an optional, outbound-only channel for dashboards and home
// automation listening on the LAN. Two retained topics exist under the
// configured prefix: a status topic (with an LWT so crashes are visible)
// and a latest-readings snapshot refreshed after each stored cycle. The
// authoritative data path is the time-series store; nothing here ever
// blocks or fails a poll cycle.
package mqtt
