package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizguard/quizguard/internal/scoring"
)

func testStore(t *testing.T) *ResultStore {
	t.Helper()
	return NewResultStore(filepath.Join(t.TempDir(), "results.json"), zerolog.Nop())
}

func TestAppendAndAll(t *testing.T) {
	s := testStore(t)

	all, err := s.All()
	require.NoError(t, err)
	assert.Empty(t, all)

	sel := 2
	first := ResultEntry{
		Timestamp: time.Now().UTC().Truncate(time.Second),
		SessionID: "session-1",
		Score:     80,
		Results:   []scoring.ResultItem{{ID: 1, Correct: 2, Selection: &sel, IsCorrect: true}},
	}
	require.NoError(t, s.Append(first))
	require.NoError(t, s.Append(ResultEntry{SessionID: "session-2", Score: 40}))

	all, err = s.All()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first, all[0])
	assert.Equal(t, "session-2", all[1].SessionID)
}

func TestClear(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Append(ResultEntry{SessionID: "session-1"}))
	require.NoError(t, s.Clear())

	all, err := s.All()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCorruptFileIsMovedAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := NewResultStore(path, zerolog.Nop())
	all, err := s.All()
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = os.Stat(path + ".corrupt")
	assert.NoError(t, err)
}

func TestAppendSurvivesMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "results.json")
	s := NewResultStore(path, zerolog.Nop())

	require.NoError(t, s.Append(ResultEntry{SessionID: "session-1", Score: 100}))

	all, err := s.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 100, all[0].Score)
}
