package collector

import "errors"

// Sentinel errors for the collection pipeline.
var (
	// ErrBatchDropped indicates a cycle's readings were discarded after
	// exhausting store write retries. The data for that cycle is gone;
	// later cycles are unaffected.
	ErrBatchDropped = errors.New("collector: batch dropped after retry exhaustion")
)
