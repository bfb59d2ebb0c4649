// Package encryption provides authenticated symmetric encryption and
// integrity hashing for quiz data held in client storage. Payloads are
// AES-256-GCM with a fresh 96-bit nonce per call, encoded as
// base64(nonce || ciphertext || tag); hashes are SHA-256 over the canonical
// JSON serialization.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes (96 bits).
	NonceSize = 12
)

var (
	// ErrInvalidKeySize is returned when key material is not KeySize bytes.
	ErrInvalidKeySize = errors.New("encryption: invalid key size")
	// ErrMalformedPayload is returned when a payload is not valid base64 or
	// is too short to contain a nonce and tag.
	ErrMalformedPayload = errors.New("encryption: malformed payload")
	// ErrIntegrity is returned when authentication fails: wrong key, or the
	// ciphertext or tag was tampered with.
	ErrIntegrity = errors.New("encryption: integrity check failed")
)

// Key is raw AES-256 key material.
type Key []byte

// GenerateKey produces a new random 256-bit key usable for both Encrypt and
// Decrypt.
func GenerateKey() (Key, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// ExportKey encodes a key into its portable string form for storage between
// sessions. The caller is responsible for not logging the result.
func ExportKey(key Key) string {
	return base64.StdEncoding.EncodeToString(key)
}

// ImportKey restores a key from its exported string form.
func ImportKey(encoded string) (Key, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeySize, err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeySize, len(raw), KeySize)
	}
	return raw, nil
}

func newGCM(key Key) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeySize, len(key), KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt serializes v to canonical JSON and seals it under key with a fresh
// random nonce. Two calls with identical input produce different payloads but
// both decrypt to equal plaintext.
func Encrypt(v any, key Key) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serialize: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt authenticates and opens a payload produced by Encrypt, decoding the
// plaintext JSON into out. It fails with ErrMalformedPayload on bad encoding
// and ErrIntegrity on tag mismatch or wrong key; corrupted data is never
// silently returned.
func Decrypt(payload string, key Key, out any) error {
	gcm, err := newGCM(key)
	if err != nil {
		return err
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(raw) < NonceSize+gcm.Overhead() {
		return fmt.Errorf("%w: payload too short", ErrMalformedPayload)
	}

	nonce, ciphertext := raw[:NonceSize], raw[NonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return ErrIntegrity
	}

	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("deserialize: %w", err)
	}
	return nil
}

// Hash returns the base64-encoded SHA-256 digest of v's canonical JSON
// serialization. Deterministic for identical input.
func Hash(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serialize: %w", err)
	}
	sum := sha256.Sum256(raw)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

// VerifyHash recomputes the digest of v and compares it to hash in constant
// time. Used to detect tampering of stored data independent of the key.
func VerifyHash(v any, hash string) (bool, error) {
	computed, err := Hash(v)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1, nil
}
