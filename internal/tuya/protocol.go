package tuya

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

// Local protocol commands. The subset needed for polling: session-key
// negotiation (v3.5 only) and the status query.
const (
	cmdSessKeyNegStart  = 0x03
	cmdSessKeyNegResp   = 0x04
	cmdSessKeyNegFinish = 0x05
	cmdStatus33         = 0x0A // DP_QUERY (v3.3)
	cmdStatus35         = 0x10 // DP_QUERY_NEW (v3.5)
)

// Frame delimiters per protocol version.
const (
	prefix33 = 0x000055AA
	suffix33 = 0x0000AA55
	prefix35 = 0x00006699
	suffix35 = 0x00009966
)

// maxFrameBody caps the declared body length of an incoming frame.
// A status response is a few hundred bytes; anything near this limit is
// stream corruption, not data.
const maxFrameBody = 1 << 16

// frame is one protocol message: sequence number, command, and the
// plaintext payload (encryption is applied at encode/decode time).
type frame struct {
	seq     uint32
	cmd     uint32
	payload []byte
}

// --- v3.5 (AES-GCM) ---------------------------------------------------
//
// Layout: prefix(4) reserved(2) seq(4) cmd(4) length(4) nonce(12)
// ciphertext+tag(length-12) suffix(4). The 14 header bytes after the
// prefix are authenticated as GCM additional data, so a tampered header
// fails decryption. The same framing is used in both directions; only
// the payload convention differs (responses to the status command carry
// a 4-byte return code before the JSON body).

// encodeFrame35 encodes a v3.5 frame, encrypting the payload with the
// given key. A random GCM nonce is generated per frame.
func encodeFrame35(key []byte, f frame) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return encodeFrame35WithNonce(key, f, nonce)
}

// encodeFrame35WithNonce is the deterministic core of encodeFrame35,
// split out so tests can use fixed nonces.
func encodeFrame35WithNonce(key []byte, f frame, nonce []byte) ([]byte, error) {
	header := make([]byte, 18)
	binary.BigEndian.PutUint32(header[0:4], prefix35)
	// header[4:6] reserved, zero
	binary.BigEndian.PutUint32(header[6:10], f.seq)
	binary.BigEndian.PutUint32(header[10:14], f.cmd)
	binary.BigEndian.PutUint32(header[14:18], uint32(nonceSize+len(f.payload)+tagSize))

	ciphertext, err := gcmSeal(key, nonce, f.payload, header[4:18])
	if err != nil {
		return nil, fmt.Errorf("sealing payload: %w", err)
	}

	out := make([]byte, 0, len(header)+nonceSize+len(ciphertext)+4)
	out = append(out, header...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	out = binary.BigEndian.AppendUint32(out, suffix35)
	return out, nil
}

// readFrame35 reads and decrypts one v3.5 frame from the stream.
//
// Returns ErrMalformedFrame for framing violations and ErrAuthFailed when
// GCM authentication fails (wrong key or tampering).
func readFrame35(r io.Reader, key []byte) (frame, error) {
	header := make([]byte, 18)
	if _, err := io.ReadFull(r, header); err != nil {
		return frame{}, err
	}
	if binary.BigEndian.Uint32(header[0:4]) != prefix35 {
		return frame{}, fmt.Errorf("%w: bad prefix %#x", ErrMalformedFrame, header[0:4])
	}

	length := binary.BigEndian.Uint32(header[14:18])
	if length < nonceSize+tagSize || length > maxFrameBody {
		return frame{}, fmt.Errorf("%w: implausible body length %d", ErrMalformedFrame, length)
	}

	body := make([]byte, length+4)
	if _, err := io.ReadFull(r, body); err != nil {
		return frame{}, err
	}
	if binary.BigEndian.Uint32(body[length:]) != suffix35 {
		return frame{}, fmt.Errorf("%w: bad suffix", ErrMalformedFrame)
	}

	nonce := body[:nonceSize]
	ciphertext := body[nonceSize:length]

	payload, err := gcmOpen(key, nonce, ciphertext, header[4:18])
	if err != nil {
		return frame{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	return frame{
		seq:     binary.BigEndian.Uint32(header[6:10]),
		cmd:     binary.BigEndian.Uint32(header[10:14]),
		payload: payload,
	}, nil
}

// --- v3.3 (AES-ECB + CRC32) -------------------------------------------
//
// Layout: prefix(4) seq(4) cmd(4) length(4) body crc32(4) suffix(4),
// where length counts body+crc+suffix. Requests encrypt the whole body;
// responses carry a plaintext 4-byte return code before the encrypted
// data. The CRC covers everything up to (not including) itself.

// encodeFrame33 encodes a v3.3 request frame.
func encodeFrame33(key []byte, f frame) ([]byte, error) {
	encrypted, err := ecbEncrypt(key, pkcs7Pad(f.payload))
	if err != nil {
		return nil, fmt.Errorf("encrypting payload: %w", err)
	}
	return assembleFrame33(f.seq, f.cmd, encrypted), nil
}

// encodeFrame33Response encodes a v3.3 response frame with a return code.
// The device side of the exchange; used by the protocol tests' fake device.
func encodeFrame33Response(key []byte, f frame, retcode uint32) ([]byte, error) {
	encrypted, err := ecbEncrypt(key, pkcs7Pad(f.payload))
	if err != nil {
		return nil, fmt.Errorf("encrypting payload: %w", err)
	}
	body := make([]byte, 0, 4+len(encrypted))
	body = binary.BigEndian.AppendUint32(body, retcode)
	body = append(body, encrypted...)
	return assembleFrame33(f.seq, f.cmd, body), nil
}

// assembleFrame33 wraps a wire-ready body in the v3.3 envelope.
func assembleFrame33(seq, cmd uint32, body []byte) []byte {
	out := make([]byte, 0, 16+len(body)+8)
	out = binary.BigEndian.AppendUint32(out, prefix33)
	out = binary.BigEndian.AppendUint32(out, seq)
	out = binary.BigEndian.AppendUint32(out, cmd)
	out = binary.BigEndian.AppendUint32(out, uint32(len(body)+8))
	out = append(out, body...)
	out = binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(out))
	out = binary.BigEndian.AppendUint32(out, suffix33)
	return out
}

// readFrame33 reads one v3.3 frame and returns its raw (still encrypted)
// body after CRC and delimiter verification.
func readFrame33(r io.Reader) (seq, cmd uint32, body []byte, err error) {
	header := make([]byte, 16)
	if _, err = io.ReadFull(r, header); err != nil {
		return 0, 0, nil, err
	}
	if binary.BigEndian.Uint32(header[0:4]) != prefix33 {
		return 0, 0, nil, fmt.Errorf("%w: bad prefix %#x", ErrMalformedFrame, header[0:4])
	}

	length := binary.BigEndian.Uint32(header[12:16])
	if length < 8 || length > maxFrameBody {
		return 0, 0, nil, fmt.Errorf("%w: implausible body length %d", ErrMalformedFrame, length)
	}

	rest := make([]byte, length)
	if _, err = io.ReadFull(r, rest); err != nil {
		return 0, 0, nil, err
	}
	if binary.BigEndian.Uint32(rest[length-4:]) != suffix33 {
		return 0, 0, nil, fmt.Errorf("%w: bad suffix", ErrMalformedFrame)
	}

	wantCRC := binary.BigEndian.Uint32(rest[length-8 : length-4])
	gotCRC := crc32.ChecksumIEEE(append(header, rest[:length-8]...))
	if wantCRC != gotCRC {
		return 0, 0, nil, fmt.Errorf("%w: CRC mismatch", ErrMalformedFrame)
	}

	return binary.BigEndian.Uint32(header[4:8]),
		binary.BigEndian.Uint32(header[8:12]),
		rest[:length-8],
		nil
}

// decodeFrame33Response reads a v3.3 response frame and decrypts its data.
//
// Returns ErrAuthFailed when decryption yields an invalid PKCS#7 pad,
// which is what decrypting with the wrong local key looks like.
func decodeFrame33Response(r io.Reader, key []byte) (frame, uint32, error) {
	seq, cmd, body, err := readFrame33(r)
	if err != nil {
		return frame{}, 0, err
	}
	if len(body) < 4 {
		return frame{}, 0, fmt.Errorf("%w: response body too short", ErrMalformedFrame)
	}
	retcode := binary.BigEndian.Uint32(body[:4])

	payload := body[4:]
	if len(payload) > 0 {
		decrypted, err := ecbDecrypt(key, payload)
		if err != nil {
			return frame{}, 0, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		payload, err = pkcs7Unpad(decrypted)
		if err != nil {
			return frame{}, 0, fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
	}

	return frame{seq: seq, cmd: cmd, payload: payload}, retcode, nil
}

// decodeFrame33Request reads a v3.3 request frame and decrypts its payload.
// The device side of the exchange; used by the protocol tests' fake device.
func decodeFrame33Request(r io.Reader, key []byte) (frame, error) {
	seq, cmd, body, err := readFrame33(r)
	if err != nil {
		return frame{}, err
	}

	payload := body
	if len(payload) > 0 {
		decrypted, err := ecbDecrypt(key, payload)
		if err != nil {
			return frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		payload, err = pkcs7Unpad(decrypted)
		if err != nil {
			return frame{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
	}

	return frame{seq: seq, cmd: cmd, payload: payload}, nil
}
