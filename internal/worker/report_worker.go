package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quizguard/quizguard/internal/config"
	"github.com/quizguard/quizguard/internal/model"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// ReportWorker drains the anti-cheat report queue into PostgreSQL in
// batches. Submissions never wait on the database: the handler only pushes
// to Redis.
type ReportWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewReportWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ReportWorker {
	return &ReportWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "report_worker").Logger(),
	}
}

func (w *ReportWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ReportWorker started")

	buffer := make([]*model.StoredReport, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Check Flush Conditions (Time or Size)
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0] // Clear buffer, keep capacity
				lastFlushTime = time.Now()
			}
		}

		// 2. Check Context (Graceful Shutdown)
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
			// Continue
		}

		// 3. Fetch from Redis
		// BLPop blocks for 1 second. Returns immediately if data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistReportsQueue).Result()

		if err != nil {
			if err == redis.Nil {
				continue // Timeout (Queue empty), loop back to check flush timer
			}
			if ctx.Err() != nil {
				return // Context cancelled
			}
			// Real Redis error (e.g., connection lost)
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		// 4. Process Data
		if len(result) < 2 {
			continue
		}

		var report model.StoredReport
		if err := json.Unmarshal([]byte(result[1]), &report); err != nil {
			// If JSON is malformed, we CANNOT retry it. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, &report)
	}
}

// flushSafe attempts bulk insert, then fallback insert, then requeue
func (w *ReportWorker) flushSafe(ctx context.Context, batch []*model.StoredReport) {
	// Try Fast Path: Bulk Insert
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")

		// Fallback Path: Insert one by one
		w.fallbackInsert(ctx, batch)
	}
}

func (w *ReportWorker) bulkInsert(ctx context.Context, batch []*model.StoredReport) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, r := range batch {
		rows = append(rows, []interface{}{
			r.SessionID, r.ReceivedAt, r.Score, r.Duration, r.TabSwitches,
			r.SuspiciousEvents, r.SuspicionScore, r.IsSuspicious,
			r.AverageAnswerTime, string(r.Events),
		})
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"anti_cheat_reports"},
		[]string{
			"session_id", "received_at", "score", "duration_ms", "tab_switches",
			"suspicious_events", "suspicion_score", "is_suspicious",
			"average_answer_time_ms", "events",
		},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *ReportWorker) fallbackInsert(ctx context.Context, batch []*model.StoredReport) {
	requeueList := make([]*model.StoredReport, 0)

	for _, r := range batch {
		_, err := w.pool.Exec(ctx,
			`INSERT INTO anti_cheat_reports
             (session_id, received_at, score, duration_ms, tab_switches,
              suspicious_events, suspicion_score, is_suspicious,
              average_answer_time_ms, events)
             VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb)`,
			r.SessionID, r.ReceivedAt, r.Score, r.Duration, r.TabSwitches,
			r.SuspiciousEvents, r.SuspicionScore, r.IsSuspicious,
			r.AverageAnswerTime, string(r.Events),
		)

		if err != nil {
			// Requeue everything that fails SQL insert. Connection errors
			// dominate here; a poison row keeps cycling but never blocks the
			// queue thanks to the fallback path.
			w.log.Error().Err(err).Str("session_id", r.SessionID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, r)
		}
	}

	// If we have items to requeue (DB was down), push them back to Redis
	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *ReportWorker) requeue(ctx context.Context, items []*model.StoredReport) {
	// Use a pipeline to push everything back quickly
	pipe := w.rdb.Pipeline()
	for _, r := range items {
		data, _ := json.Marshal(r)
		pipe.RPush(ctx, config.WorkerKey.PersistReportsQueue, data)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
	} else {
		w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
		// Sleep a bit to avoid thrashing if the DB is down hard
		time.Sleep(2 * time.Second)
	}
}

func (w *ReportWorker) shutdown(buffer []*model.StoredReport) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	// Give it 5 seconds to flush to DB
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
