package model

import (
	"encoding/json"
	"time"
)

// SubmitRequest is the /api/submit request body. Selections arrives as raw
// JSON so the handler can distinguish a malformed body from a structurally
// invalid selections object.
type SubmitRequest struct {
	EncryptedData   string           `json:"encryptedData"`
	Selections      json.RawMessage  `json:"selections" binding:"required"`
	AntiCheatReport *AntiCheatReport `json:"antiCheatReport"`
}

// AntiCheatReport is the client monitor's report as received on the wire.
// Events stay raw: the server records them but never interprets individual
// entries.
type AntiCheatReport struct {
	SessionID         string            `json:"sessionId"`
	Duration          int64             `json:"duration"`
	TabSwitches       int               `json:"tabSwitches"`
	SuspiciousEvents  int               `json:"suspiciousEvents"`
	SuspicionScore    int               `json:"suspicionScore"`
	IsSuspicious      bool              `json:"isSuspicious"`
	AverageAnswerTime float64           `json:"averageAnswerTime"`
	Events            []json.RawMessage `json:"events"`
}

// SessionData is the per-session submission metadata kept in Redis.
type SessionData struct {
	SubmittedAt    time.Time `json:"submittedAt"`
	Score          int       `json:"score"`
	SuspicionScore int       `json:"suspicionScore"`
}

// StoredReport is an anti-cheat report queued for persistence, enriched with
// server-side context.
type StoredReport struct {
	SessionID         string          `json:"sessionId"`
	ReceivedAt        time.Time       `json:"receivedAt"`
	Score             int             `json:"score"`
	Duration          int64           `json:"duration"`
	TabSwitches       int             `json:"tabSwitches"`
	SuspiciousEvents  int             `json:"suspiciousEvents"`
	SuspicionScore    int             `json:"suspicionScore"`
	IsSuspicious      bool            `json:"isSuspicious"`
	AverageAnswerTime float64         `json:"averageAnswerTime"`
	Events            json.RawMessage `json:"events"`
}
