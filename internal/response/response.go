package response

import (
	"github.com/gin-gonic/gin"
)

// ErrorBody is the wire shape of every error response: a single message
// string under the "error" key.
type ErrorBody struct {
	Error string `json:"error"`
}

// Success sends a successful JSON response with the given status code and
// data. Success bodies are endpoint-specific, so data is passed through
// unwrapped.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// Fail sends an error response for the given code.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	c.JSON(statusCode, ErrorBody{Error: GetMessage(code)})
}

// AbortFail aborts the middleware chain and sends an error response.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	c.AbortWithStatusJSON(statusCode, ErrorBody{Error: GetMessage(code)})
}
