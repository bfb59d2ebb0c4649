package security

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *Bus {
	return NewBus(zerolog.Nop())
}

func TestLogAppendsAndReturnsEvent(t *testing.T) {
	bus := newTestBus()

	ev := bus.Log(EventAPIRequest, LevelInfo, "fetching questions", map[string]any{"sessionId": "abc"})

	require.NotEmpty(t, ev.ID)
	assert.Equal(t, EventAPIRequest, ev.Type)
	assert.Equal(t, LevelInfo, ev.Level)

	events := bus.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ev.ID, events[0].ID)
}

func TestFIFOEvictionKeepsMostRecent1000(t *testing.T) {
	bus := newTestBus()

	for i := 0; i < 1100; i++ {
		bus.Log(EventAPIRequest, LevelInfo, fmt.Sprintf("event %d", i), nil)
	}

	events := bus.Events()
	require.Len(t, events, MaxEvents)
	// The oldest 100 were evicted; the first survivor is event 100.
	assert.Equal(t, "event 100", events[0].Message)
	assert.Equal(t, "event 1099", events[len(events)-1].Message)
}

func TestFilterProjections(t *testing.T) {
	bus := newTestBus()
	bus.Log(EventAPIRequest, LevelInfo, "a", nil)
	bus.Log(EventErrorOccurred, LevelCritical, "b", nil)
	bus.Log(EventRateLimitExceeded, LevelWarning, "c", nil)
	bus.Log(EventErrorOccurred, LevelCritical, "d", nil)

	assert.Len(t, bus.EventsByType(EventErrorOccurred), 2)
	assert.Len(t, bus.EventsByLevel(LevelCritical), 2)
	assert.Len(t, bus.EventsByLevel(LevelWarning), 1)

	recent := bus.RecentEvents(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].Message)
	assert.Equal(t, "d", recent[1].Message)

	// Asking for more than exists returns everything.
	assert.Len(t, bus.RecentEvents(50), 4)
}

func TestSummary(t *testing.T) {
	bus := newTestBus()
	for i := 0; i < 12; i++ {
		bus.Log(EventErrorOccurred, LevelCritical, fmt.Sprintf("crit %d", i), nil)
	}
	bus.Log(EventAPIRequest, LevelInfo, "info", nil)
	bus.Log(EventRateLimitExceeded, LevelWarning, "warn", nil)

	s := bus.Summary()
	assert.Equal(t, 14, s.TotalEvents)
	assert.Equal(t, 12, s.CriticalCount)
	assert.Equal(t, 1, s.WarningCount)
	assert.Equal(t, 1, s.InfoCount)
	require.Len(t, s.RecentCritical, 10)
	assert.Equal(t, "crit 2", s.RecentCritical[0].Message)
	assert.Equal(t, "crit 11", s.RecentCritical[9].Message)
}

func TestSubscribeDeliversInSubscriptionOrder(t *testing.T) {
	bus := newTestBus()

	var order []string
	bus.Subscribe(func(Event) { order = append(order, "first") })
	bus.Subscribe(func(Event) { order = append(order, "second") })

	bus.Log(EventAPIRequest, LevelInfo, "x", nil)

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestUnsubscribeIsIdempotentAndIdentityScoped(t *testing.T) {
	bus := newTestBus()

	var a, b int
	fn := func(Event) { a++ }
	unsubA := bus.Subscribe(fn)
	// Same function value subscribed twice is a distinct registration.
	unsubB := bus.Subscribe(fn)
	bus.Subscribe(func(Event) { b++ })

	bus.Log(EventAPIRequest, LevelInfo, "x", nil)
	assert.Equal(t, 2, a)

	unsubA()
	unsubA() // repeat call must not remove the second registration
	bus.Log(EventAPIRequest, LevelInfo, "y", nil)
	assert.Equal(t, 3, a)
	assert.Equal(t, 2, b)

	unsubB()
	bus.Log(EventAPIRequest, LevelInfo, "z", nil)
	assert.Equal(t, 3, a)
	assert.Equal(t, 3, b)
}

func TestListenerAddedMidDispatchNotInvokedForSameEvent(t *testing.T) {
	bus := newTestBus()

	var late int
	bus.Subscribe(func(Event) {
		bus.Subscribe(func(Event) { late++ })
	})

	bus.Log(EventAPIRequest, LevelInfo, "x", nil)
	assert.Equal(t, 0, late, "listener registered during dispatch must not see the triggering event")

	bus.Log(EventAPIRequest, LevelInfo, "y", nil)
	assert.Equal(t, 1, late)
}

func TestExportRoundTrips(t *testing.T) {
	bus := newTestBus()
	bus.Log(EventDataEncrypted, LevelInfo, "sealed", map[string]any{"count": float64(3)})

	raw, err := bus.Export()
	require.NoError(t, err)

	var decoded []Event
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, EventDataEncrypted, decoded[0].Type)
}

func TestClearEmptiesBuffer(t *testing.T) {
	bus := newTestBus()
	bus.Log(EventAPIRequest, LevelInfo, "x", nil)
	bus.Clear()
	assert.Empty(t, bus.Events())
	assert.Equal(t, 0, bus.Summary().TotalEvents)
}
