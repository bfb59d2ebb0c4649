package client

import "sync"

// Storage keys for material derived during a secure session.
const (
	storeKeyEncryptionKey = "quiz_encryption_key"
	storeKeyQuestions     = "quiz_data_encrypted"
	storeKeyQuestionsHash = "quiz_data_hash"
	storeKeyResult        = "quiz_result_encrypted"
)

// SessionStore holds session-lifetime key/value material: the exported
// encryption key, encrypted payloads, and integrity hashes. Implementations
// must treat values as opaque and never log them.
type SessionStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
	Clear() error
}

// MemoryStore is the in-process SessionStore. Material vanishes with the
// process, which matches the intended session-bounded key lifetime.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
	return nil
}
