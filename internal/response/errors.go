package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	ErrInvalidRequest     ErrCode = "INVALID_REQUEST"
	ErrInvalidSelections  ErrCode = "INVALID_SELECTIONS"
	ErrUnauthorized       ErrCode = "UNAUTHORIZED"
	ErrSessionBlocked     ErrCode = "SESSION_BLOCKED"
	ErrRateLimitExceeded  ErrCode = "RATE_LIMIT_EXCEEDED"
	ErrOriginNotAllowed   ErrCode = "ORIGIN_NOT_ALLOWED"
	ErrInternal           ErrCode = "INTERNAL_ERROR"
	ErrQuestionsNotLoaded ErrCode = "QUESTIONS_NOT_LOADED"
)

// GetMessage returns the exact wire message for a given error code. Clients
// match on these strings, so they are part of the API contract.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidRequest:
		return "Invalid request"
	case ErrInvalidSelections:
		return "Invalid selections"
	case ErrUnauthorized:
		return "Unauthorized"
	case ErrSessionBlocked:
		return "Session blocked due to suspicious activity"
	case ErrRateLimitExceeded:
		return "Too many requests"
	case ErrOriginNotAllowed:
		return "Origin not allowed"
	case ErrQuestionsNotLoaded:
		return "Questions unavailable"
	case ErrInternal:
		return "Internal server error"
	default:
		return "An unexpected error occurred"
	}
}
