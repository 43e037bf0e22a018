package tuya

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
)

// AES parameters for the local protocol.
const (
	keySize   = 16 // AES-128, fixed by the vendor
	nonceSize = 12 // GCM nonce length in v3.5 frames
	tagSize   = 16 // GCM tag length
)

// pkcs7Pad pads data to a whole number of AES blocks (v3.3 ECB payloads).
func pkcs7Pad(data []byte) []byte {
	padding := aes.BlockSize - len(data)%aes.BlockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

// pkcs7Unpad strips PKCS#7 padding. A malformed pad is the first visible
// symptom of decrypting with the wrong key, so the caller maps this error
// to ErrAuthFailed.
func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > aes.BlockSize || padding > len(data) {
		return nil, fmt.Errorf("invalid padding byte %d", padding)
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-padding], nil
}

// ecbEncrypt encrypts data with AES-ECB (v3.3 wire format). The input must
// already be padded to the block size.
func ecbEncrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("plaintext not block-aligned")
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += aes.BlockSize {
		block.Encrypt(out[i:i+aes.BlockSize], data[i:i+aes.BlockSize])
	}
	return out, nil
}

// ecbDecrypt decrypts AES-ECB data (v3.3 wire format).
func ecbDecrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext not block-aligned")
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += aes.BlockSize {
		block.Decrypt(out[i:i+aes.BlockSize], data[i:i+aes.BlockSize])
	}
	return out, nil
}

// gcmSeal encrypts payload with AES-128-GCM (v3.5 wire format).
// The returned ciphertext includes the 16-byte authentication tag.
func gcmSeal(key, nonce, payload, aad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, payload, aad), nil
}

// gcmOpen decrypts and authenticates an AES-128-GCM ciphertext.
// An authentication failure here means the key is wrong or the frame was
// tampered with; callers map it to ErrAuthFailed.
func gcmOpen(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, aad)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// hmacSHA256 computes the negotiation HMAC over a nonce.
func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// deriveSessionKey derives the v3.5 session key from the shared local key
// and the two negotiation nonces: the nonces are XORed together and
// encrypted with the local key under GCM (nonce = first 12 bytes of the
// client nonce); the first 16 ciphertext bytes become the session key.
func deriveSessionKey(localKey, localNonce, remoteNonce []byte) ([]byte, error) {
	xored := make([]byte, keySize)
	for i := range xored {
		xored[i] = localNonce[i] ^ remoteNonce[i]
	}
	sealed, err := gcmSeal(localKey, localNonce[:nonceSize], xored, nil)
	if err != nil {
		return nil, err
	}
	return sealed[:keySize], nil
}
