package tuya

import "errors"

// Sentinel errors for device session operations.
//
// Each failure mode the scheduler cares about has its own sentinel so
// callers can classify with errors.Is(). Everything here is transient
// except ErrAuthFailed: a key or protocol-version mismatch cannot heal
// itself and must be escalated to the operator instead of retried.
var (
	// ErrUnreachable indicates the device refused or dropped the connection.
	ErrUnreachable = errors.New("tuya: device unreachable")

	// ErrTimeout indicates the device did not answer within the request timeout.
	ErrTimeout = errors.New("tuya: request timed out")

	// ErrMalformedFrame indicates a response that violates the wire format.
	ErrMalformedFrame = errors.New("tuya: malformed frame")

	// ErrDeviceFault indicates the device answered with a non-zero return code.
	ErrDeviceFault = errors.New("tuya: device reported an error")

	// ErrAuthFailed indicates payload decryption or session-key negotiation
	// failed. Almost always a wrong local key or protocol version.
	ErrAuthFailed = errors.New("tuya: authentication failed")

	// ErrInvalidKey indicates the configured local key has the wrong length.
	ErrInvalidKey = errors.New("tuya: local key must be 16 bytes")
)

// IsPersistent reports whether err requires operator action before another
// attempt can succeed. Transient errors are expected to self-resolve and
// are safe to retry with backoff.
func IsPersistent(err error) bool {
	return errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrInvalidKey)
}
