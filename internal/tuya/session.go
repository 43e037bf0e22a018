package tuya

import (
	"net"
	"sync/atomic"
	"time"
)

// Session is an established device connection plus the keys and counters
// scoped to it. Sessions are owned by a single polling goroutine; the
// client never shares one across callers.
//
// For protocol v3.5 the session key is negotiated per connection and
// replaces the static local key for all subsequent frames. For v3.3 the
// session key is simply the local key and no negotiation takes place.
type Session struct {
	conn net.Conn
	key  []byte
	seq  atomic.Uint32

	// failures counts consecutive transient poll failures on this
	// session. The client tears the session down once the configured
	// threshold is reached so the next poll starts from a clean dial.
	failures int

	// LastSuccess is the wall-clock time of the last successful status
	// query on this session. Zero until the first success.
	LastSuccess time.Time
}

// nextSeq returns the next frame sequence number. Sequence numbers start
// at 1; zero is reserved for the device's unsolicited pushes.
func (s *Session) nextSeq() uint32 {
	return s.seq.Add(1)
}

// Connected reports whether the session still holds an open connection.
func (s *Session) Connected() bool {
	return s != nil && s.conn != nil
}

// Close releases the underlying connection. Safe on a nil session and
// safe to call twice.
func (s *Session) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
