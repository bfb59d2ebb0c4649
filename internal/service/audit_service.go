package service

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/quizguard/quizguard/internal/store"
)

// AuditSummary aggregates the persisted results for the audit endpoint.
type AuditSummary struct {
	TotalSubmissions  int                 `json:"totalSubmissions"`
	AverageScore      float64             `json:"averageScore"`
	UniqueSessions    int                 `json:"uniqueSessions"`
	RecentSubmissions []store.ResultEntry `json:"recentSubmissions"`
	DateRange         *DateRange          `json:"dateRange,omitempty"`
}

// DateRange spans the oldest and newest stored submission.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// AuditService summarizes and manages the persisted result log.
type AuditService struct {
	results *store.ResultStore
	log     zerolog.Logger
}

func NewAuditService(results *store.ResultStore, log zerolog.Logger) *AuditService {
	return &AuditService{
		results: results,
		log:     log.With().Str("component", "audit_service").Logger(),
	}
}

// Summary computes the aggregate view. Recent submissions are the last 10,
// newest first.
func (s *AuditService) Summary() (*AuditSummary, error) {
	entries, err := s.results.All()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load results")
		return nil, err
	}

	summary := &AuditSummary{
		TotalSubmissions:  len(entries),
		RecentSubmissions: []store.ResultEntry{},
	}
	if len(entries) == 0 {
		return summary, nil
	}

	total := 0
	sessions := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		total += e.Score
		sessions[e.SessionID] = struct{}{}
	}
	summary.AverageScore = float64(total) / float64(len(entries))
	summary.UniqueSessions = len(sessions)
	summary.DateRange = &DateRange{
		From: entries[0].Timestamp,
		To:   entries[len(entries)-1].Timestamp,
	}

	start := len(entries) - 10
	if start < 0 {
		start = 0
	}
	recent := entries[start:]
	for i := len(recent) - 1; i >= 0; i-- {
		summary.RecentSubmissions = append(summary.RecentSubmissions, recent[i])
	}

	return summary, nil
}

// Clear wipes the result log.
func (s *AuditService) Clear() error {
	s.log.Info().Msg("audit log cleared")
	return s.results.Clear()
}
