package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/quizguard/quizguard/internal/security"
)

const (
	// MaxRequests is the number of requests admitted per identifier per window.
	MaxRequests = 10
	// Window is the fixed admission window.
	Window = time.Minute
)

type record struct {
	count       int
	windowReset time.Time
}

// Limiter is a local, single-process fixed-window admission controller keyed
// by an opaque identifier. The authoritative limit lives server-side; this
// one exists so a client fails fast before spending a network round trip.
type Limiter struct {
	mu      sync.Mutex
	records map[string]*record
	max     int
	window  time.Duration
	bus     *security.Bus
	now     func() time.Time
}

// New creates a Limiter with the default MaxRequests per Window.
func New(bus *security.Bus) *Limiter {
	return &Limiter{
		records: make(map[string]*record),
		max:     MaxRequests,
		window:  Window,
		bus:     bus,
		now:     time.Now,
	}
}

// Allow reports whether a request for identifier is admitted. A new window
// starts with count 1 when no record exists or the previous window elapsed.
// Within a window the count increments up to the limit; once the limit is
// reached every further call is denied until the window resets (no partial
// refill). Hitting the limit emits a RATE_LIMIT_EXCEEDED warning.
func (l *Limiter) Allow(identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[identifier]
	if !ok || now.After(rec.windowReset) {
		// Replace the record wholesale across a window boundary.
		l.records[identifier] = &record{count: 1, windowReset: now.Add(l.window)}
		return true
	}

	if rec.count >= l.max {
		if l.bus != nil {
			l.bus.Log(security.EventRateLimitExceeded, security.LevelWarning,
				fmt.Sprintf("Rate limit exceeded for %s", identifier),
				map[string]any{"identifier": identifier, "count": rec.count})
		}
		return false
	}

	rec.count++
	return true
}

// Reset deletes the record for identifier, opening a fresh window on the next
// Allow call.
func (l *Limiter) Reset(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, identifier)
}

// ClearAll wipes every record. Test and ops utility.
func (l *Limiter) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = make(map[string]*record)
}
