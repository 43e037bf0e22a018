// Package collector drives data acquisition: poll the device, decode the
// data points, write the batch to the time-series store, journal the
// outcome.
//
// The scheduler is strictly sequential. One cycle runs at a time, the
// next tick derives from the previous cycle's start, and ticks that pass
// while a cycle is stuck are skipped. Transient device failures back off
// exponentially with a bounded number of retries before the loop settles
// back into its normal cadence with a standing alarm; a persistent
// failure (bad key) suspends polling outright, because retrying cannot
// help and would only hammer the device.
//
// The sink is equally blunt about store trouble: a batch gets a bounded
// number of attempts and is then dropped with a journal entry, never
// buffered. Samples carry their cycle timestamps, so partial writes and
// retries are idempotent in the store.
package collector
