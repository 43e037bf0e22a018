package mqtt

// Topic layout under the configured prefix (default "aquamon"):
//
//	aquamon/status    retained availability of the collector itself
//	aquamon/readings  retained JSON snapshot of the latest cycle
//
// Both topics are retained so a dashboard connecting between poll
// cycles immediately sees the last known state.

// Topics builds topic strings for a prefix.
type Topics struct {
	Prefix string
}

// prefix returns the configured prefix or the default.
func (t Topics) prefix() string {
	if t.Prefix == "" {
		return "aquamon"
	}
	return t.Prefix
}

// Status returns the collector availability topic.
func (t Topics) Status() string {
	return t.prefix() + "/status"
}

// Readings returns the latest-readings snapshot topic.
func (t Topics) Readings() string {
	return t.prefix() + "/readings"
}
