package security

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxEvents is the bounded buffer size. Logging past this evicts the oldest
// entries first.
const MaxEvents = 1000

type subscriber struct {
	id uint64
	fn func(Event)
}

// Bus is a process-wide, ordered, bounded audit trail with live subscription.
// Insertion order is the only ordering guarantee; eviction is strictly FIFO.
type Bus struct {
	mu     sync.Mutex
	events []Event
	subs   []subscriber
	nextID uint64
	max    int
	log    zerolog.Logger
	now    func() time.Time
}

// NewBus creates a Bus with the default capacity of MaxEvents.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		max: MaxEvents,
		log: log.With().Str("component", "security_bus").Logger(),
		now: time.Now,
	}
}

// Log constructs an event, appends it to the buffer, evicts from the front if
// the buffer is over capacity, and notifies every subscriber synchronously in
// subscription order before returning.
func (b *Bus) Log(t EventType, level Level, message string, metadata map[string]any) Event {
	ev := Event{
		ID:        uuid.New().String(),
		Timestamp: b.now(),
		Type:      t,
		Level:     level,
		Message:   message,
		Metadata:  metadata,
	}

	b.mu.Lock()
	b.events = append(b.events, ev)
	if over := len(b.events) - b.max; over > 0 {
		b.events = append(b.events[:0], b.events[over:]...)
	}
	// Snapshot so listeners added or removed mid-dispatch do not affect
	// delivery for this Log call.
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		s.fn(ev)
	}

	b.emit(ev)
	return ev
}

// emit mirrors the event onto the structured log so every audit record is
// visible in normal log output as well.
func (b *Bus) emit(ev Event) {
	var e *zerolog.Event
	switch ev.Level {
	case LevelCritical:
		e = b.log.Error()
	case LevelWarning:
		e = b.log.Warn()
	default:
		e = b.log.Info()
	}
	e.Str("event_id", ev.ID).
		Str("event_type", string(ev.Type)).
		Msg(ev.Message)
}

// Events returns a copy of the current buffer.
func (b *Bus) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// EventsByType returns events matching t, in insertion order.
func (b *Bus) EventsByType(t EventType) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, ev := range b.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// EventsByLevel returns events matching level, in insertion order.
func (b *Bus) EventsByLevel(level Level) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, ev := range b.events {
		if ev.Level == level {
			out = append(out, ev)
		}
	}
	return out
}

// RecentEvents returns the last n events, or the whole buffer if it holds
// fewer than n.
func (b *Bus) RecentEvents(n int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > len(b.events) {
		n = len(b.events)
	}
	out := make([]Event, n)
	copy(out, b.events[len(b.events)-n:])
	return out
}

// Summary returns counts per level plus the last 10 critical events.
func (b *Bus) Summary() Summary {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Summary{TotalEvents: len(b.events)}
	var critical []Event
	for _, ev := range b.events {
		switch ev.Level {
		case LevelCritical:
			s.CriticalCount++
			critical = append(critical, ev)
		case LevelWarning:
			s.WarningCount++
		case LevelInfo:
			s.InfoCount++
		}
	}
	if len(critical) > 10 {
		critical = critical[len(critical)-10:]
	}
	if critical == nil {
		critical = []Event{}
	}
	s.RecentCritical = critical
	return s
}

// Subscribe registers a listener that receives every subsequent event,
// synchronously, in subscription order. The returned closure removes exactly
// that registration and is idempotent on repeat calls.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Export serializes the full buffer for download or offline audit.
func (b *Bus) Export() ([]byte, error) {
	return json.MarshalIndent(b.Events(), "", "  ")
}

// Clear empties the buffer. Intended for test harnesses and explicit admin
// action only.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}
