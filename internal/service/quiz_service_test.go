package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizguard/quizguard/internal/model"
	"github.com/quizguard/quizguard/internal/scoring"
	"github.com/quizguard/quizguard/internal/store"
)

func newTestQuizService(t *testing.T) (*QuizService, *store.ResultStore) {
	t.Helper()
	results := store.NewResultStore(filepath.Join(t.TempDir(), "results.json"), zerolog.Nop())
	svc := NewQuizService(scoring.DefaultQuestions(), nil, results, 24*time.Hour, zerolog.Nop())
	return svc, results
}

func sel(v int) *int { return &v }

func TestQuestionsStripAnswerKey(t *testing.T) {
	svc, _ := newTestQuizService(t)

	questions, err := svc.Questions(context.Background(), "session-1")
	require.NoError(t, err)
	require.Len(t, questions, len(scoring.DefaultQuestions()))

	raw, err := json.Marshal(questions)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correct")
}

func TestParseSelections(t *testing.T) {
	svc, _ := newTestQuizService(t)

	t.Run("valid with nulls", func(t *testing.T) {
		selections, err := svc.ParseSelections(json.RawMessage(`{"1": 2, "2": null}`))
		require.NoError(t, err)
		require.Len(t, selections, 2)
		assert.Equal(t, 2, *selections["1"])
		assert.Nil(t, selections["2"])
	})

	t.Run("not an object", func(t *testing.T) {
		_, err := svc.ParseSelections(json.RawMessage(`[1,2,3]`))
		assert.ErrorIs(t, err, ErrInvalidSelections)
	})

	t.Run("non-numeric value", func(t *testing.T) {
		_, err := svc.ParseSelections(json.RawMessage(`{"1": "a"}`))
		assert.ErrorIs(t, err, ErrInvalidSelections)
	})

	t.Run("unknown question", func(t *testing.T) {
		_, err := svc.ParseSelections(json.RawMessage(`{"999": 0}`))
		assert.ErrorIs(t, err, ErrInvalidSelections)
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := svc.ParseSelections(json.RawMessage(`{"1": 99}`))
		assert.ErrorIs(t, err, ErrInvalidSelections)
	})
}

func TestSubmitScoresAndPersists(t *testing.T) {
	svc, results := newTestQuizService(t)
	questions := scoring.DefaultQuestions()

	selections := scoring.Selections{}
	for _, q := range questions {
		correct := q.Correct
		selections[strconv.Itoa(q.ID)] = &correct
	}

	got, err := svc.Submit(context.Background(), "session-1", selections, nil, true)
	require.NoError(t, err)
	assert.Equal(t, len(questions), got.Score)
	assert.Empty(t, got.Warning)
	assert.Len(t, got.Results, len(questions))

	entries, err := results.All()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "session-1", entries[0].SessionID)
	assert.Equal(t, len(questions), entries[0].Score)
}

func TestSubmitWarnsOnHighSuspicion(t *testing.T) {
	svc, _ := newTestQuizService(t)

	report := &model.AntiCheatReport{SessionID: "session-1", SuspicionScore: BlockSuspicionThreshold}
	got, err := svc.Submit(context.Background(), "session-1", scoring.Selections{"1": sel(0)}, report, true)
	require.NoError(t, err)
	assert.Equal(t, SuspiciousWarning, got.Warning)
}

func TestSubmitBelowThresholdHasNoWarning(t *testing.T) {
	svc, _ := newTestQuizService(t)

	report := &model.AntiCheatReport{SessionID: "session-1", SuspicionScore: BlockSuspicionThreshold - 1}
	got, err := svc.Submit(context.Background(), "session-1", scoring.Selections{"1": sel(0)}, report, true)
	require.NoError(t, err)
	assert.Empty(t, got.Warning)
}

func TestSubmitWithoutRedisSkipsBlocking(t *testing.T) {
	svc, _ := newTestQuizService(t)

	// Even after a blockable report, the next request succeeds: there is no
	// block list without Redis.
	report := &model.AntiCheatReport{SuspicionScore: 100}
	_, err := svc.Submit(context.Background(), "session-1", scoring.Selections{"1": sel(0)}, report, true)
	require.NoError(t, err)

	_, err = svc.Questions(context.Background(), "session-1")
	assert.NoError(t, err)
}

func TestSubmitWithoutAuthorizationIsNotPersisted(t *testing.T) {
	svc, results := newTestQuizService(t)

	got, err := svc.Submit(context.Background(), "session-1", scoring.Selections{"1": sel(0)}, nil, false)
	require.NoError(t, err)
	assert.NotNil(t, got)

	entries, err := results.All()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
