package tuya

import (
	"bytes"
	"errors"
	"testing"
)

var (
	testKey      = []byte("0123456789abcdef")
	testWrongKey = []byte("fedcba9876543210")
)

func TestFrame35_RoundTrip(t *testing.T) {
	in := frame{seq: 7, cmd: cmdStatus35, payload: []byte(`{"dps":{"8":235}}`)}

	raw, err := encodeFrame35(testKey, in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	out, err := readFrame35(bytes.NewReader(raw), testKey)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.seq != in.seq || out.cmd != in.cmd {
		t.Errorf("header = seq %d cmd %#x, want seq %d cmd %#x", out.seq, out.cmd, in.seq, in.cmd)
	}
	if !bytes.Equal(out.payload, in.payload) {
		t.Errorf("payload = %q, want %q", out.payload, in.payload)
	}
}

func TestFrame35_EmptyPayload(t *testing.T) {
	raw, err := encodeFrame35(testKey, frame{seq: 1, cmd: cmdSessKeyNegFinish})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := readFrame35(bytes.NewReader(raw), testKey)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out.payload) != 0 {
		t.Errorf("payload = %q, want empty", out.payload)
	}
}

func TestFrame35_WrongKeyFailsAuth(t *testing.T) {
	raw, err := encodeFrame35(testKey, frame{seq: 1, cmd: cmdStatus35, payload: []byte("{}")})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, err = readFrame35(bytes.NewReader(raw), testWrongKey)
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("err = %v, want ErrAuthFailed", err)
	}
}

func TestFrame35_TamperedHeaderFailsAuth(t *testing.T) {
	raw, err := encodeFrame35(testKey, frame{seq: 1, cmd: cmdStatus35, payload: []byte("{}")})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw[9] ^= 0xFF // flip a sequence byte, covered by the GCM AAD

	_, err = readFrame35(bytes.NewReader(raw), testKey)
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("err = %v, want ErrAuthFailed", err)
	}
}

func TestFrame35_BadPrefix(t *testing.T) {
	raw, _ := encodeFrame35(testKey, frame{seq: 1, cmd: cmdStatus35, payload: []byte("{}")})
	raw[0] = 0xFF

	_, err := readFrame35(bytes.NewReader(raw), testKey)
	if !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("err = %v, want ErrMalformedFrame", err)
	}
}

func TestFrame35_Truncated(t *testing.T) {
	raw, _ := encodeFrame35(testKey, frame{seq: 1, cmd: cmdStatus35, payload: []byte(`{"dps":{}}`)})

	for _, n := range []int{0, 10, len(raw) - 5} {
		if _, err := readFrame35(bytes.NewReader(raw[:n]), testKey); err == nil {
			t.Errorf("truncation to %d bytes must fail", n)
		}
	}
}

func TestFrame33_RequestRoundTrip(t *testing.T) {
	in := frame{seq: 3, cmd: cmdStatus33, payload: []byte(`{"gwId":"dev1"}`)}

	raw, err := encodeFrame33(testKey, in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	out, err := decodeFrame33Request(bytes.NewReader(raw), testKey)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.seq != in.seq || out.cmd != in.cmd || !bytes.Equal(out.payload, in.payload) {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestFrame33_ResponseRoundTrip(t *testing.T) {
	in := frame{seq: 3, cmd: cmdStatus33, payload: []byte(`{"dps":{"8":235}}`)}

	raw, err := encodeFrame33Response(testKey, in, 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	out, retcode, err := decodeFrame33Response(bytes.NewReader(raw), testKey)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if retcode != 0 {
		t.Errorf("retcode = %d, want 0", retcode)
	}
	if !bytes.Equal(out.payload, in.payload) {
		t.Errorf("payload = %q, want %q", out.payload, in.payload)
	}
}

func TestFrame33_RetcodePreserved(t *testing.T) {
	raw, err := encodeFrame33Response(testKey, frame{seq: 1, cmd: cmdStatus33, payload: []byte("{}")}, 1)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, retcode, err := decodeFrame33Response(bytes.NewReader(raw), testKey)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if retcode != 1 {
		t.Errorf("retcode = %d, want 1", retcode)
	}
}

func TestFrame33_CorruptedCRC(t *testing.T) {
	raw, _ := encodeFrame33(testKey, frame{seq: 1, cmd: cmdStatus33, payload: []byte("{}")})
	raw[20] ^= 0xFF // inside the encrypted body, breaks the CRC

	_, err := decodeFrame33Request(bytes.NewReader(raw), testKey)
	if !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("err = %v, want ErrMalformedFrame", err)
	}
}

func TestFrame33_WrongKeyFails(t *testing.T) {
	raw, _ := encodeFrame33Response(testKey, frame{seq: 1, cmd: cmdStatus33, payload: []byte(`{"dps":{"8":1}}`)}, 0)

	if _, _, err := decodeFrame33Response(bytes.NewReader(raw), testWrongKey); err == nil {
		t.Error("decrypting with the wrong key must fail")
	}
}

func TestDeriveSessionKey_Deterministic(t *testing.T) {
	localNonce := []byte("aaaabbbbccccdddd")
	remoteNonce := []byte("0000111122223333")

	k1, err := deriveSessionKey(testKey, localNonce, remoteNonce)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	k2, err := deriveSessionKey(testKey, localNonce, remoteNonce)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	if len(k1) != keySize {
		t.Fatalf("key length = %d, want %d", len(k1), keySize)
	}
	if !bytes.Equal(k1, k2) {
		t.Error("derivation must be deterministic for fixed nonces")
	}
	if bytes.Equal(k1, testKey) {
		t.Error("session key must differ from the local key")
	}
}

func TestPKCS7_RoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 15, 16, 17, 31} {
		data := bytes.Repeat([]byte{0x42}, n)
		padded := pkcs7Pad(data)
		if len(padded)%16 != 0 {
			t.Fatalf("len %d: padded length %d not block-aligned", n, len(padded))
		}
		out, err := pkcs7Unpad(padded)
		if err != nil {
			t.Fatalf("len %d: unpad: %v", n, err)
		}
		if !bytes.Equal(out, data) {
			t.Errorf("len %d: round trip mismatch", n)
		}
	}
}

func TestPKCS7_RejectsBadPadding(t *testing.T) {
	bad := [][]byte{
		nil,
		bytes.Repeat([]byte{0x00}, 16),          // padding byte zero
		append(bytes.Repeat([]byte{1}, 15), 17), // padding byte too large
		append(bytes.Repeat([]byte{9}, 15), 2),  // inconsistent run
		bytes.Repeat([]byte{0x42}, 15),          // not block-aligned
	}
	for i, data := range bad {
		if _, err := pkcs7Unpad(data); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}
