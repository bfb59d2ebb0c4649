package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizguard/quizguard/internal/response"
)

// RequireAPIKey guards privileged endpoints with a shared secret carried in
// the X-API-Key header. An empty expected key rejects everything, so an
// unconfigured deployment fails closed.
func RequireAPIKey(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-API-Key")
		if expected == "" || provided == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrUnauthorized)
			return
		}
		c.Next()
	}
}
