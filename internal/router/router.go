package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quizguard/quizguard/internal/config"
	"github.com/quizguard/quizguard/internal/handler"
	"github.com/quizguard/quizguard/internal/middleware"
	"github.com/quizguard/quizguard/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Quiz           *handler.QuizHandler
	Audit          *handler.AuditHandler
	SecurityStream *handler.SecurityStreamHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	handlers *Handlers,
	limiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID", "X-Session-Id", "X-Data-Hash", "X-API-Key"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response can be traced.
	router.Use(response.RequestIDMiddleware())

	// Hardening headers go on every response, including errors.
	router.Use(middleware.SecurityHeaders())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus metrics.
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ─── 1. Quiz API (Rate Limited, No Caching) ────────────────────────
	api := router.Group("/api")
	api.Use(middleware.NoStore(), limiter.Middleware())
	{
		api.GET("/questions", handlers.Quiz.GetQuestions)
		api.POST("/submit", handlers.Quiz.Submit)
	}

	// ─── 2. Audit Group (API Key) ──────────────────────────────────────
	audit := router.Group("/api/audit")
	audit.Use(middleware.NoStore(), middleware.RequireAPIKey(cfg.APIKey))
	{
		audit.GET("", handlers.Audit.GetAudit)
		audit.DELETE("", handlers.Audit.ClearAudit)
	}

	// ─── 3. WebSocket Group (API Key) ──────────────────────────────────
	ws := router.Group("/ws")
	ws.Use(middleware.RequireAPIKey(cfg.APIKey))
	{
		ws.GET("/security/stream", handlers.SecurityStream.Stream)
	}

	return router
}
