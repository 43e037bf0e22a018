package tuya

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/seafront-labs/aquamon/internal/dps"
	"github.com/seafront-labs/aquamon/internal/infrastructure/config"
	"github.com/seafront-labs/aquamon/internal/infrastructure/logging"
)

// Client polls one device over the Tuya local protocol. It is safe to
// keep a Client for the process lifetime; per-connection state lives in
// the Session values it hands out.
type Client struct {
	deviceID    string
	addr        string
	localKey    []byte
	version     string
	timeout     time.Duration
	maxFailures int
	logger      *logging.Logger
}

// NewClient validates the device configuration and returns a client.
//
// Returns ErrInvalidKey when the local key is not exactly 16 bytes; this
// is checked here rather than at poll time because a bad key can never
// recover on its own.
func NewClient(cfg config.DeviceConfig, maxSessionFailures int, logger *logging.Logger) (*Client, error) {
	if len(cfg.LocalKey) != keySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(cfg.LocalKey))
	}
	switch cfg.ProtocolVersion {
	case "3.3", "3.5":
	default:
		return nil, fmt.Errorf("unsupported protocol version %q", cfg.ProtocolVersion)
	}

	return &Client{
		deviceID:    cfg.ID,
		addr:        net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port)),
		localKey:    []byte(cfg.LocalKey),
		version:     cfg.ProtocolVersion,
		timeout:     cfg.DeviceTimeout(),
		maxFailures: maxSessionFailures,
		logger:      logger,
	}, nil
}

// Poll performs one status query against the device, reusing sess when it
// is still connected and dialling a fresh session otherwise.
//
// The returned session replaces the one passed in: it is nil when the
// session was torn down (persistent failure, or the consecutive-failure
// threshold was reached), in which case the next Poll starts from a
// clean dial. The data points are raw and unordered by the device; they
// are returned sorted by code.
func (c *Client) Poll(ctx context.Context, sess *Session) (*Session, []dps.RawDataPoint, error) {
	if !sess.Connected() {
		fresh, err := c.connect(ctx)
		if err != nil {
			return nil, nil, err
		}
		sess = fresh
	}

	points, err := c.queryStatus(ctx, sess)
	if err != nil {
		if IsPersistent(err) {
			sess.Close()
			return nil, nil, err
		}
		sess.failures++
		if sess.failures >= c.maxFailures {
			c.logger.Warn("session failure threshold reached, reconnecting next poll",
				"device_id", c.deviceID, "failures", sess.failures)
			sess.Close()
			return nil, nil, err
		}
		return sess, nil, err
	}

	sess.failures = 0
	sess.LastSuccess = time.Now()
	return sess, points, nil
}

// connect dials the device and, for protocol v3.5, negotiates a session
// key. The static local key is used directly for v3.3.
func (c *Client) connect(ctx context.Context) (*Session, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, classifyNetErr(err)
	}

	sess := &Session{conn: conn, key: c.localKey}
	if c.version == "3.5" {
		if err := c.negotiate(ctx, sess); err != nil {
			sess.Close()
			return nil, err
		}
	}

	c.logger.Debug("device session established", "device_id", c.deviceID, "protocol", c.version)
	return sess, nil
}

// negotiate runs the three-message v3.5 session-key handshake. Both sides
// prove knowledge of the local key via HMAC over the peer's nonce before
// the session key is derived from the XOR of the two nonces.
func (c *Client) negotiate(ctx context.Context, sess *Session) error {
	localNonce := make([]byte, keySize)
	if _, err := rand.Read(localNonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}

	stop := c.armDeadline(ctx, sess.conn)
	defer stop()

	if err := c.writeFrame35(sess.conn, c.localKey, sess.nextSeq(), cmdSessKeyNegStart, localNonce); err != nil {
		return classifyNetErr(err)
	}

	resp, err := readFrame35(sess.conn, c.localKey)
	if err != nil {
		// A device that cannot decrypt the opening frame drops the
		// connection instead of answering, so a close while awaiting the
		// negotiation response means the local key is wrong. The generic
		// EOF mapping stays transient for established sessions.
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: connection closed during key negotiation: %v", ErrAuthFailed, err)
		}
		return classifyNetErr(err)
	}
	if resp.cmd != cmdSessKeyNegResp {
		return fmt.Errorf("%w: expected negotiation response, got cmd %#x", ErrMalformedFrame, resp.cmd)
	}
	if len(resp.payload) < keySize+32 {
		return fmt.Errorf("%w: negotiation response too short", ErrMalformedFrame)
	}

	remoteNonce := resp.payload[:keySize]
	if !hmac.Equal(resp.payload[keySize:keySize+32], hmacSHA256(c.localKey, localNonce)) {
		return fmt.Errorf("%w: device HMAC does not match local nonce", ErrAuthFailed)
	}

	finish := hmacSHA256(c.localKey, remoteNonce)
	if err := c.writeFrame35(sess.conn, c.localKey, sess.nextSeq(), cmdSessKeyNegFinish, finish); err != nil {
		return classifyNetErr(err)
	}

	sessionKey, err := deriveSessionKey(c.localKey, localNonce, remoteNonce)
	if err != nil {
		return fmt.Errorf("deriving session key: %w", err)
	}
	sess.key = sessionKey
	return nil
}

// queryStatus sends one status query and decodes the response into raw
// data points.
func (c *Client) queryStatus(ctx context.Context, sess *Session) ([]dps.RawDataPoint, error) {
	stop := c.armDeadline(ctx, sess.conn)
	defer stop()

	switch c.version {
	case "3.5":
		return c.queryStatus35(sess)
	default:
		return c.queryStatus33(sess)
	}
}

func (c *Client) queryStatus35(sess *Session) ([]dps.RawDataPoint, error) {
	seq := sess.nextSeq()
	if err := c.writeFrame35(sess.conn, sess.key, seq, cmdStatus35, []byte("{}")); err != nil {
		return nil, classifyNetErr(err)
	}

	// Devices interleave unsolicited pushes with query responses; skip
	// frames until the matching sequence number arrives.
	for {
		resp, err := readFrame35(sess.conn, sess.key)
		if err != nil {
			return nil, classifyNetErr(err)
		}
		if resp.seq != seq {
			continue
		}
		if len(resp.payload) < 4 {
			return nil, fmt.Errorf("%w: response payload too short", ErrMalformedFrame)
		}
		if retcode := binary.BigEndian.Uint32(resp.payload[:4]); retcode != 0 {
			return nil, fmt.Errorf("%w: return code %d", ErrDeviceFault, retcode)
		}
		return parseStatusPayload(resp.payload[4:])
	}
}

func (c *Client) queryStatus33(sess *Session) ([]dps.RawDataPoint, error) {
	body, err := json.Marshal(map[string]any{
		"gwId":  c.deviceID,
		"devId": c.deviceID,
		"uid":   c.deviceID,
		"t":     strconv.FormatInt(time.Now().Unix(), 10),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	seq := sess.nextSeq()
	raw, err := encodeFrame33(sess.key, frame{seq: seq, cmd: cmdStatus33, payload: body})
	if err != nil {
		return nil, err
	}
	if _, err := sess.conn.Write(raw); err != nil {
		return nil, classifyNetErr(err)
	}

	for {
		resp, retcode, err := decodeFrame33Response(sess.conn, sess.key)
		if err != nil {
			return nil, classifyNetErr(err)
		}
		if resp.seq != seq {
			continue
		}
		if retcode != 0 {
			return nil, fmt.Errorf("%w: return code %d", ErrDeviceFault, retcode)
		}
		return parseStatusPayload(resp.payload)
	}
}

func (c *Client) writeFrame35(conn net.Conn, key []byte, seq, cmd uint32, payload []byte) error {
	raw, err := encodeFrame35(key, frame{seq: seq, cmd: cmd, payload: payload})
	if err != nil {
		return err
	}
	_, err = conn.Write(raw)
	return err
}

// armDeadline bounds one request-response exchange by both the configured
// device timeout and the caller's context. Cancelling the context snaps
// the deadline to now, which surfaces as a timeout on the blocked read.
func (c *Client) armDeadline(ctx context.Context, conn net.Conn) func() {
	conn.SetDeadline(time.Now().Add(c.timeout))
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	return func() {
		stop()
		conn.SetDeadline(time.Time{})
	}
}

// statusEnvelope covers the two response shapes devices produce: a flat
// {"dps":{...}} and the v3.4+ nested {"protocol":4,"data":{"dps":{...}}}.
// Values stay untyped because devices mix integers with booleans and
// strings in the same map.
type statusEnvelope struct {
	Dps  map[string]any `json:"dps"`
	Data struct {
		Dps map[string]any `json:"dps"`
	} `json:"data"`
}

// parseStatusPayload extracts raw data points from a status response body.
// Non-numeric values and non-numeric codes are skipped; the sensor only
// reports integers, so anything else is vendor metadata.
func parseStatusPayload(body []byte) ([]dps.RawDataPoint, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var env statusEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: undecodable status payload: %v", ErrMalformedFrame, err)
	}

	values := env.Dps
	if values == nil {
		values = env.Data.Dps
	}
	if values == nil {
		return nil, fmt.Errorf("%w: status payload has no data points", ErrMalformedFrame)
	}

	points := make([]dps.RawDataPoint, 0, len(values))
	for code, v := range values {
		id, err := strconv.Atoi(code)
		if err != nil {
			continue
		}
		num, ok := v.(json.Number)
		if !ok {
			continue
		}
		raw, err := num.Int64()
		if err != nil {
			continue
		}
		points = append(points, dps.RawDataPoint{Code: id, Raw: raw})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Code < points[j].Code })
	return points, nil
}

// classifyNetErr maps transport errors onto the package sentinels so the
// scheduler can classify without knowing about net internals.
func classifyNetErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrMalformedFrame) || errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrDeviceFault) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: connection closed mid-frame: %v", ErrUnreachable, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
