package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quizguard/quizguard/internal/config"
	"github.com/quizguard/quizguard/internal/metrics"
	"github.com/quizguard/quizguard/internal/model"
	"github.com/quizguard/quizguard/internal/scoring"
	"github.com/quizguard/quizguard/internal/store"
)

// BlockSuspicionThreshold is the report score at which the server blocks the
// session for further submissions.
const BlockSuspicionThreshold = 70

// SuspiciousWarning is returned verbatim to flagged clients.
const SuspiciousWarning = "Suspicious activity detected. Results may be reviewed."

var (
	// ErrSessionBlocked means the session was previously flagged.
	ErrSessionBlocked = errors.New("session blocked due to suspicious activity")
	// ErrInvalidSelections means the selections payload failed shape checks.
	ErrInvalidSelections = errors.New("invalid selections")
)

// SubmitResult is the outcome of a scored submission.
type SubmitResult struct {
	Score   int
	Results []scoring.ResultItem
	Warning string
}

// QuizService serves questions and scores submissions. Redis is optional:
// with a nil client the block list, session metadata, and the persistence
// queue are disabled, but scoring still works.
type QuizService struct {
	questions []scoring.Question
	rdb       *redis.Client
	results   *store.ResultStore
	blockTTL  time.Duration
	log       zerolog.Logger
}

func NewQuizService(questions []scoring.Question, rdb *redis.Client, results *store.ResultStore, blockTTL time.Duration, log zerolog.Logger) *QuizService {
	return &QuizService{
		questions: questions,
		rdb:       rdb,
		results:   results,
		blockTTL:  blockTTL,
		log:       log.With().Str("component", "quiz_service").Logger(),
	}
}

// Questions returns the public question set, refusing blocked sessions.
func (s *QuizService) Questions(ctx context.Context, sessionID string) ([]scoring.PublicQuestion, error) {
	if err := s.checkBlocked(ctx, sessionID); err != nil {
		return nil, err
	}
	return scoring.Public(s.questions), nil
}

// ParseSelections validates the raw selections payload against the question
// set: an object whose keys name known questions and whose values are null or
// an in-range answer index.
func (s *QuizService) ParseSelections(raw json.RawMessage) (scoring.Selections, error) {
	var selections scoring.Selections
	if err := json.Unmarshal(raw, &selections); err != nil {
		return nil, fmt.Errorf("%w: not an object of nullable indices", ErrInvalidSelections)
	}

	answerCounts := make(map[string]int, len(s.questions))
	for _, q := range s.questions {
		answerCounts[strconv.Itoa(q.ID)] = len(q.Answers)
	}

	for key, value := range selections {
		count, known := answerCounts[key]
		if !known {
			return nil, fmt.Errorf("%w: unknown question %q", ErrInvalidSelections, key)
		}
		if value != nil && (*value < 0 || *value >= count) {
			return nil, fmt.Errorf("%w: answer index %d out of range for question %q", ErrInvalidSelections, *value, key)
		}
	}
	return selections, nil
}

// Submit scores a submission and applies the server side of the anti-cheat
// policy: a report at or above the block threshold blocks the session for
// future requests and tags the response with a warning. The result is
// persisted only for authorized callers, and persistence is best effort — a
// storage failure never fails the submission.
func (s *QuizService) Submit(ctx context.Context, sessionID string, selections scoring.Selections, report *model.AntiCheatReport, persist bool) (*SubmitResult, error) {
	if err := s.checkBlocked(ctx, sessionID); err != nil {
		metrics.Submissions.WithLabelValues("blocked").Inc()
		return nil, err
	}

	outcome := scoring.Score(s.questions, selections)
	result := &SubmitResult{Score: outcome.Score, Results: outcome.Results}

	suspicionScore := 0
	if report != nil {
		suspicionScore = report.SuspicionScore
		if suspicionScore >= BlockSuspicionThreshold {
			s.blockSession(ctx, sessionID, suspicionScore)
			result.Warning = SuspiciousWarning
		}
	}

	s.storeSessionData(ctx, sessionID, model.SessionData{
		SubmittedAt:    time.Now().UTC(),
		Score:          outcome.Score,
		SuspicionScore: suspicionScore,
	})

	if persist {
		err := s.results.Append(store.ResultEntry{
			Timestamp: time.Now().UTC(),
			SessionID: sessionID,
			Score:     outcome.Score,
			Results:   outcome.Results,
		})
		if err != nil {
			s.log.Error().Err(err).Msg("failed to persist result")
		} else {
			s.log.Info().Str("session_id", sessionID).Int("score", outcome.Score).Msg("result persisted")
		}
	}

	if report != nil {
		s.enqueueReport(ctx, sessionID, outcome.Score, report)
	}

	metrics.Submissions.WithLabelValues("accepted").Inc()
	s.log.Info().
		Str("session_id", sessionID).
		Int("score", outcome.Score).
		Int("suspicion_score", suspicionScore).
		Msg("submission scored")

	return result, nil
}

// checkBlocked consults the Redis block list. A nil client or Redis failure
// allows the request: blocking is best effort.
func (s *QuizService) checkBlocked(ctx context.Context, sessionID string) error {
	if s.rdb == nil || sessionID == "" {
		return nil
	}
	exists, err := s.rdb.Exists(ctx, config.RedisKey.BlockedSessionKey(sessionID)).Result()
	if err != nil {
		s.log.Warn().Err(err).Msg("block list check failed, allowing request")
		return nil
	}
	if exists > 0 {
		return ErrSessionBlocked
	}
	return nil
}

func (s *QuizService) blockSession(ctx context.Context, sessionID string, suspicionScore int) {
	metrics.BlockedSessions.Inc()
	s.log.Warn().
		Str("session_id", sessionID).
		Int("suspicion_score", suspicionScore).
		Msg("session blocked for suspicious activity")

	if s.rdb == nil || sessionID == "" {
		return
	}
	if err := s.rdb.Set(ctx, config.RedisKey.BlockedSessionKey(sessionID), "1", s.blockTTL).Err(); err != nil {
		s.log.Error().Err(err).Msg("failed to record session block")
	}
}

func (s *QuizService) storeSessionData(ctx context.Context, sessionID string, data model.SessionData) {
	if s.rdb == nil || sessionID == "" {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, config.RedisKey.SessionDataKey(sessionID), raw, 24*time.Hour).Err(); err != nil {
		s.log.Warn().Err(err).Msg("failed to store session data")
	}
}

// enqueueReport pushes the report onto the persistence queue consumed by the
// report worker.
func (s *QuizService) enqueueReport(ctx context.Context, sessionID string, score int, report *model.AntiCheatReport) {
	if s.rdb == nil {
		return
	}

	events, err := json.Marshal(report.Events)
	if err != nil {
		events = json.RawMessage("[]")
	}
	stored := model.StoredReport{
		SessionID:         sessionID,
		ReceivedAt:        time.Now().UTC(),
		Score:             score,
		Duration:          report.Duration,
		TabSwitches:       report.TabSwitches,
		SuspiciousEvents:  report.SuspiciousEvents,
		SuspicionScore:    report.SuspicionScore,
		IsSuspicious:      report.IsSuspicious,
		AverageAnswerTime: report.AverageAnswerTime,
		Events:            events,
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode report for queue")
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistReportsQueue, raw).Err(); err != nil {
		s.log.Warn().Err(err).Msg("failed to enqueue report")
	}
}
