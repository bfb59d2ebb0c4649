// Package store persists quiz results to a flat JSON file. The audit
// endpoints read the same file, so writes keep it valid JSON at all times.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quizguard/quizguard/internal/scoring"
)

// ResultEntry is one persisted submission.
type ResultEntry struct {
	Timestamp time.Time            `json:"timestamp"`
	SessionID string               `json:"sessionId"`
	Score     int                  `json:"score"`
	Results   []scoring.ResultItem `json:"results"`
}

// ResultStore is a mutex-guarded append-only JSON file. Each write rewrites
// the whole array through a temp file and rename, so a crash never leaves a
// half-written file behind.
type ResultStore struct {
	mu   sync.Mutex
	path string
	log  zerolog.Logger
}

// NewResultStore creates a ResultStore writing to path.
func NewResultStore(path string, log zerolog.Logger) *ResultStore {
	return &ResultStore{path: path, log: log.With().Str("component", "result_store").Logger()}
}

// Append adds an entry to the results file.
func (s *ResultStore) Append(entry ResultEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked()
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	return s.saveLocked(entries)
}

// All returns every stored entry, oldest first.
func (s *ResultStore) All() ([]ResultEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Clear truncates the store.
func (s *ResultStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked([]ResultEntry{})
}

func (s *ResultStore) loadLocked() ([]ResultEntry, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []ResultEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	if len(raw) == 0 {
		return []ResultEntry{}, nil
	}

	var entries []ResultEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		// A corrupt file must not take submissions down. Preserve it for
		// inspection and start fresh.
		backup := s.path + ".corrupt"
		if renameErr := os.Rename(s.path, backup); renameErr == nil {
			s.log.Error().Str("backup", backup).Msg("results file corrupt, moved aside")
		}
		return []ResultEntry{}, nil
	}
	return entries, nil
}

func (s *ResultStore) saveLocked(entries []ResultEntry) error {
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return os.Rename(tmp, s.path)
}
