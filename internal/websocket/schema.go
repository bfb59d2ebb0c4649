package websocket

import "github.com/quizguard/quizguard/internal/security"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing    Action = "ping"
	ActionSummary Action = "summary"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError         Event = "error"
	EventSecurityEvent Event = "security_event"
	EventSummary       Event = "summary"
	EventPong          Event = "pong"
)

// SecurityEventResponse pushes one bus event to the subscriber.
type SecurityEventResponse struct {
	Event   Event          `json:"event"`
	Payload security.Event `json:"payload"`
}

// SummaryResponse answers an explicit summary request.
type SummaryResponse struct {
	Event   Event            `json:"event"`
	Payload security.Summary `json:"payload"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
