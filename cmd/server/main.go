package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/quizguard/quizguard/internal/config"
	"github.com/quizguard/quizguard/internal/database"
	"github.com/quizguard/quizguard/internal/handler"
	"github.com/quizguard/quizguard/internal/logger"
	"github.com/quizguard/quizguard/internal/metrics"
	"github.com/quizguard/quizguard/internal/middleware"
	"github.com/quizguard/quizguard/internal/router"
	"github.com/quizguard/quizguard/internal/scoring"
	"github.com/quizguard/quizguard/internal/security"
	"github.com/quizguard/quizguard/internal/service"
	"github.com/quizguard/quizguard/internal/store"
	"github.com/quizguard/quizguard/internal/validator"
	"github.com/quizguard/quizguard/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting QuizGuard")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Load Questions ────────────────────────────────────────────────
	questions, err := scoring.LoadQuestions(cfg.QuestionsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.QuestionsPath).Msg("Failed to load questions")
	}
	log.Info().Int("count", len(questions)).Msg("Questions loaded")

	// ─── Connect to Redis ──────────────────────────────────────────────
	// Redis drives the block list, rate limiting, and the persistence
	// queue. All three degrade gracefully, so a failed connection is a
	// warning, not a fatal.
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, blocking and rate limiting disabled")
		rdb = nil
	} else {
		defer rdb.Close()
	}

	// ─── Security Event Bus ────────────────────────────────────────────
	bus := security.NewBus(log)
	unobserve := metrics.ObserveBus(bus)
	defer unobserve()

	// ─── Initialize Services ──────────────────────────────────────────
	results := store.NewResultStore(cfg.ResultsPath, log)
	quizService := service.NewQuizService(questions, rdb, results, cfg.BlockTTL, log)
	auditService := service.NewAuditService(results, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Quiz:           handler.NewQuizHandler(quizService, bus, cfg.APIKey, log),
		Audit:          handler.NewAuditHandler(auditService, log),
		SecurityStream: handler.NewSecurityStreamHandler(bus, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	// The report worker needs both Postgres and Redis; skip it when either
	// is absent and let reports stay queued (or unqueued) instead.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	if cfg.DatabaseURL != "" && rdb != nil {
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		reportWorker := worker.NewReportWorker(pool, rdb, log)
		go reportWorker.Start(workerCtx)
	} else {
		log.Info().Msg("Report persistence worker disabled")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	limiter := middleware.NewRateLimiter(rdb, cfg.RateLimitMax, cfg.RateLimitWindow, log)
	r := router.SetupRouter(handlers, limiter, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
