package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quizguard/quizguard/internal/config"
	"github.com/quizguard/quizguard/internal/metrics"
	"github.com/quizguard/quizguard/internal/response"
)

// RateLimiter is a Redis-backed sliding window limiter keyed by session ID
// when present, client IP otherwise. A nil Redis client disables limiting so
// the API stays available when Redis is down.
type RateLimiter struct {
	rdb    *redis.Client
	max    int
	window time.Duration
	log    zerolog.Logger
}

// NewRateLimiter creates a RateLimiter (e.g., 10 requests per minute).
func NewRateLimiter(rdb *redis.Client, max int, window time.Duration, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{rdb: rdb, max: max, window: window, log: log}
}

// Middleware returns a Gin middleware enforcing the sliding window. Denied
// requests carry X-RateLimit-Limit, X-RateLimit-Remaining, and
// X-RateLimit-Reset headers.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rdb == nil {
			c.Next()
			return
		}

		identifier := c.GetHeader("X-Session-Id")
		if identifier == "" {
			identifier = c.ClientIP()
		}
		key := config.RedisKey.RateLimitKey(identifier)

		now := time.Now()
		windowStart := now.Add(-rl.window)

		pipe := rl.rdb.Pipeline()
		pipe.ZRemRangeByScore(c.Request.Context(), key, "0", strconv.FormatInt(windowStart.UnixMilli(), 10))
		countCmd := pipe.ZCard(c.Request.Context(), key)
		if _, err := pipe.Exec(c.Request.Context()); err != nil {
			// Fail open: limiting is a protection, not a dependency.
			rl.log.Warn().Err(err).Msg("rate limit check failed, allowing request")
			c.Next()
			return
		}

		count := countCmd.Val()
		if count >= int64(rl.max) {
			metrics.RateLimited.Inc()
			c.Header("X-RateLimit-Limit", strconv.Itoa(rl.max))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(now.Add(rl.window).Unix(), 10))
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}

		// Member must be unique per request so concurrent hits both count.
		member := strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.New().String()
		pipe = rl.rdb.Pipeline()
		pipe.ZAdd(c.Request.Context(), key, redis.Z{Score: float64(now.UnixMilli()), Member: member})
		pipe.Expire(c.Request.Context(), key, rl.window)
		if _, err := pipe.Exec(c.Request.Context()); err != nil {
			rl.log.Warn().Err(err).Msg("rate limit record failed")
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.max))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(int64(rl.max)-count-1, 10))
		c.Next()
	}
}
