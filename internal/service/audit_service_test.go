package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizguard/quizguard/internal/store"
)

func newTestAuditService(t *testing.T) (*AuditService, *store.ResultStore) {
	t.Helper()
	results := store.NewResultStore(filepath.Join(t.TempDir(), "results.json"), zerolog.Nop())
	return NewAuditService(results, zerolog.Nop()), results
}

func TestSummaryEmptyStore(t *testing.T) {
	svc, _ := newTestAuditService(t)

	summary, err := svc.Summary()
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalSubmissions)
	assert.Zero(t, summary.AverageScore)
	assert.Empty(t, summary.RecentSubmissions)
	assert.Nil(t, summary.DateRange)
}

func TestSummaryAggregates(t *testing.T) {
	svc, results := newTestAuditService(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		session := "session-a"
		if i%2 == 1 {
			session = "session-b"
		}
		require.NoError(t, results.Append(store.ResultEntry{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			SessionID: session,
			Score:     i,
		}))
	}

	summary, err := svc.Summary()
	require.NoError(t, err)

	assert.Equal(t, 12, summary.TotalSubmissions)
	assert.InDelta(t, 5.5, summary.AverageScore, 0.001) // mean of 0..11
	assert.Equal(t, 2, summary.UniqueSessions)

	require.Len(t, summary.RecentSubmissions, 10)
	// Newest first.
	assert.Equal(t, 11, summary.RecentSubmissions[0].Score)
	assert.Equal(t, 2, summary.RecentSubmissions[9].Score)

	require.NotNil(t, summary.DateRange)
	assert.Equal(t, base, summary.DateRange.From)
	assert.Equal(t, base.Add(11*time.Hour), summary.DateRange.To)
}

func TestClearEmptiesLog(t *testing.T) {
	svc, results := newTestAuditService(t)
	require.NoError(t, results.Append(store.ResultEntry{SessionID: "session-1"}))

	require.NoError(t, svc.Clear())

	summary, err := svc.Summary()
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalSubmissions)
}
