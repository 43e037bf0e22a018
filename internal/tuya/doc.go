// Package tuya implements the client side of the Tuya local LAN protocol
// for polling a single device's data-point status.
//
// Two wire formats are supported: v3.3 (AES-ECB payloads with a CRC32
// trailer) and v3.5 (AES-GCM frames with an authenticated header and a
// per-connection negotiated session key). The polling surface is one
// method, Client.Poll, which owns connection establishment, session-key
// negotiation, and response parsing, and reports failures through the
// package's sentinel errors so callers can separate transient faults
// from ones that need an operator.
//
// The package never retries on its own. Retry policy, backoff, and
// scheduling belong to the caller; this keeps a poll a bounded, single
// request-response exchange.
package tuya
