package client

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/hkdf"
)

// FileStore is a SessionStore persisted to a single file so a session can
// survive a process restart. The whole map is sealed with AES-GCM under a
// key derived from the configured secret, so the quiz encryption key is
// never written to disk in cleartext.
type FileStore struct {
	mu   sync.Mutex
	path string
	aead cipher.AEAD
}

const fileStoreInfo = "quizguard:session-store"

// NewFileStore creates a FileStore at path sealed under secret. The secret
// must be at least 16 bytes.
func NewFileStore(path, secret string) (*FileStore, error) {
	if len(secret) < 16 {
		return nil, errors.New("filestore: secret must be at least 16 bytes")
	}

	// Domain-separated key derivation, HKDF-SHA256.
	reader := hkdf.New(sha256.New, []byte(secret), nil, []byte(fileStoreInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("filestore: derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &FileStore{path: path, aead: aead}, nil
}

func (s *FileStore) load() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: read: %w", err)
	}
	if len(raw) < s.aead.NonceSize() {
		return nil, errors.New("filestore: truncated store file")
	}

	nonce, sealed := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("filestore: unseal: %w", err)
	}

	values := map[string]string{}
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, fmt.Errorf("filestore: decode: %w", err)
	}
	return values, nil
}

func (s *FileStore) save(values map[string]string) error {
	plain, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("filestore: encode: %w", err)
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("filestore: nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, plain, nil)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("filestore: mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("filestore: write: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return "", false
	}
	v, ok := values[key]
	return v, ok
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return err
	}
	delete(values, key)
	return s.save(values)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
