package security

import (
	"time"
)

// EventType identifies the kind of security-relevant occurrence being recorded.
type EventType string

const (
	EventEncryptionKeyGenerated EventType = "ENCRYPTION_KEY_GENERATED"
	EventDataEncrypted          EventType = "DATA_ENCRYPTED"
	EventDataDecrypted          EventType = "DATA_DECRYPTED"
	EventAPIRequest             EventType = "API_REQUEST"
	EventQuizStarted            EventType = "QUIZ_STARTED"
	EventQuizSubmitted          EventType = "QUIZ_SUBMITTED"
	EventSuspiciousActivity     EventType = "SUSPICIOUS_ACTIVITY"
	EventRateLimitExceeded      EventType = "RATE_LIMIT_EXCEEDED"
	EventValidationFailed       EventType = "VALIDATION_FAILED"
	EventErrorOccurred          EventType = "ERROR_OCCURRED"
)

// Level is the audit severity of a security event.
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelCritical Level = "CRITICAL"
)

// Event is an immutable audit record. Once appended to the bus it is never
// mutated; the only way it leaves the buffer is FIFO eviction.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	Level     Level          `json:"level"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Summary aggregates the current buffer for display and export.
type Summary struct {
	TotalEvents    int     `json:"totalEvents"`
	CriticalCount  int     `json:"criticalCount"`
	WarningCount   int     `json:"warningCount"`
	InfoCount      int     `json:"infoCount"`
	RecentCritical []Event `json:"recentCritical"`
}
