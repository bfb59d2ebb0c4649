// Package anticheat detects and scores suspicious behavior during a timed
// quiz session. It is a session-scoped state machine: uninitialized until
// Initialize, active until Reset. Detection is heuristic; the suspicion score
// it produces is deterministic over the events recorded in a session and
// never decreases except on reset.
package anticheat

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quizguard/quizguard/internal/scoring"
	"github.com/quizguard/quizguard/internal/security"
)

// Detection thresholds.
const (
	// MinAnswerTime marks answers below this as suspiciously fast.
	MinAnswerTime = 1000 * time.Millisecond
	// MaxTabSwitches is how many tab switches are tolerated before the
	// severity escalates.
	MaxTabSwitches = 3
	// SuspicionThreshold is the score at or above which a session counts as
	// suspicious.
	SuspicionThreshold = 50
	// geometryDelta is the outer/inner window size difference, in pixels,
	// that suggests an open inspection panel.
	geometryDelta = 160
)

// CheatType enumerates detected behaviors.
type CheatType string

const (
	CheatTabSwitch        CheatType = "TAB_SWITCH"
	CheatSuspiciousSpeed  CheatType = "SUSPICIOUS_SPEED"
	CheatPatternDetection CheatType = "PATTERN_DETECTION"
	CheatCopyAttempt      CheatType = "COPY_ATTEMPT"
	CheatPasteAttempt     CheatType = "PASTE_ATTEMPT"
	CheatContextMenu      CheatType = "CONTEXT_MENU"
	CheatDeveloperTools   CheatType = "DEVELOPER_TOOLS"
)

// Severity weights a CheatEvent's contribution to the suspicion score.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// CheatEvent is an immutable record of one detected behavior. Listeners
// receive it by value and never own it.
type CheatEvent struct {
	Type      CheatType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Severity  Severity       `json:"severity"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Session is one active monitoring session. Owned exclusively by the Monitor;
// callers receive copies.
type Session struct {
	SessionID     string
	StartTime     time.Time
	TabSwitches   int
	Events        []CheatEvent
	AnswerTimings []time.Duration
	LastActivity  time.Time
}

// Report is the submission-path view of a session, shaped for the wire.
type Report struct {
	SessionID         string       `json:"sessionId"`
	Duration          int64        `json:"duration"` // ms since Initialize
	TabSwitches       int          `json:"tabSwitches"`
	SuspiciousEvents  int          `json:"suspiciousEvents"`
	SuspicionScore    int          `json:"suspicionScore"`
	IsSuspicious      bool         `json:"isSuspicious"`
	AverageAnswerTime float64      `json:"averageAnswerTime"` // ms, 0 if no timings
	Events            []CheatEvent `json:"events"`
}

type cheatListener struct {
	id uint64
	fn func(CheatEvent)
}

// Monitor is the behavioral detector handle. At most one session is active
// per Monitor; Initialize replaces any previous session.
type Monitor struct {
	mu        sync.Mutex
	bus       *security.Bus
	log       zerolog.Logger
	sources   []SignalSource
	session   *Session
	listeners []cheatListener
	nextID    uint64
	running   bool
	now       func() time.Time
}

// NewMonitor creates an uninitialized Monitor. Sources are attached on
// Initialize and detached on Reset.
func NewMonitor(bus *security.Bus, log zerolog.Logger, sources ...SignalSource) *Monitor {
	return &Monitor{
		bus:     bus,
		log:     log.With().Str("component", "anticheat").Logger(),
		sources: sources,
		now:     time.Now,
	}
}

// Initialize creates a fresh session, starts every signal source, and returns
// a snapshot of the new session.
func (m *Monitor) Initialize(sessionID string) Session {
	m.mu.Lock()
	now := m.now()
	m.session = &Session{
		SessionID:    sessionID,
		StartTime:    now,
		LastActivity: now,
	}
	startSources := !m.running
	m.running = true
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	if startSources {
		for _, src := range m.sources {
			if err := src.Start(m.handleSignal); err != nil {
				m.log.Warn().Err(err).Msg("signal source failed to start")
			}
		}
	}

	m.bus.Log(security.EventQuizStarted, security.LevelInfo,
		"Anti-cheat monitoring initialized",
		map[string]any{"sessionId": sessionID})

	return snapshot
}

// Reset detaches all signal sources and discards the session and listeners.
// Idempotent and safe to call when already uninitialized.
func (m *Monitor) Reset() {
	m.mu.Lock()
	wasRunning := m.running
	m.running = false
	m.session = nil
	m.listeners = nil
	m.mu.Unlock()

	if wasRunning {
		for _, src := range m.sources {
			src.Stop()
		}
	}
}

// Session returns a copy of the active session, or nil if uninitialized.
func (m *Monitor) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	s := m.snapshotLocked()
	return &s
}

func (m *Monitor) snapshotLocked() Session {
	s := *m.session
	s.Events = append([]CheatEvent(nil), m.session.Events...)
	s.AnswerTimings = append([]time.Duration(nil), m.session.AnswerTimings...)
	return s
}

// RecordAnswerTiming appends one answer duration. Durations under
// MinAnswerTime raise a high-severity SUSPICIOUS_SPEED event. No-op when no
// session is active.
func (m *Monitor) RecordAnswerTiming(questionID int, elapsed time.Duration) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return
	}
	m.session.AnswerTimings = append(m.session.AnswerTimings, elapsed)
	m.session.LastActivity = m.now()
	m.mu.Unlock()

	if elapsed >= MinAnswerTime {
		return
	}

	meta := map[string]any{
		"questionId":  questionID,
		"timeSpentMs": elapsed.Milliseconds(),
		"thresholdMs": MinAnswerTime.Milliseconds(),
	}
	m.logCheatEvent(CheatEvent{
		Type:      CheatSuspiciousSpeed,
		Timestamp: m.now(),
		Severity:  SeverityHigh,
		Metadata:  meta,
	})
	m.bus.Log(security.EventSuspiciousActivity, security.LevelWarning,
		"Suspiciously fast answer detected", meta)
}

// AnalyzeAnswerPattern inspects the non-null selections, ordered by question
// ID. More than 3 identical values flag "all-same"; more than 3 values in a
// strictly monotonic ±1 run flag "sequential". Either appends a high-severity
// PATTERN_DETECTION event and returns true. Fewer than 4 non-null answers
// never trigger the check.
func (m *Monitor) AnalyzeAnswerPattern(selections scoring.Selections) bool {
	m.mu.Lock()
	active := m.session != nil
	m.mu.Unlock()
	if !active {
		return false
	}

	values := orderedNonNullValues(selections)
	if len(values) <= 3 {
		return false
	}

	allSame := true
	for _, v := range values {
		if v != values[0] {
			allSame = false
			break
		}
	}

	ascending, descending := true, true
	for i := 1; i < len(values); i++ {
		if values[i] != values[i-1]+1 {
			ascending = false
		}
		if values[i] != values[i-1]-1 {
			descending = false
		}
	}
	sequential := ascending || descending

	if !allSame && !sequential {
		return false
	}

	pattern := "all-same"
	if !allSame {
		pattern = "sequential"
	}
	meta := map[string]any{"pattern": pattern, "answers": values}

	m.logCheatEvent(CheatEvent{
		Type:      CheatPatternDetection,
		Timestamp: m.now(),
		Severity:  SeverityHigh,
		Metadata:  meta,
	})
	m.bus.Log(security.EventSuspiciousActivity, security.LevelCritical,
		"Suspicious answer pattern detected", meta)
	return true
}

// orderedNonNullValues extracts selection values in ascending question-ID
// order, skipping nulls.
func orderedNonNullValues(selections scoring.Selections) []int {
	keys := make([]string, 0, len(selections))
	for k := range selections {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})

	values := make([]int, 0, len(keys))
	for _, k := range keys {
		if v := selections[k]; v != nil {
			values = append(values, *v)
		}
	}
	return values
}

// SuspicionScore is the deterministic weighted sum of session signals, capped
// at 100: min(tabSwitches*10, 30) plus 20/10/5 per high/medium/low event.
func (m *Monitor) SuspicionScore() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspicionScoreLocked()
}

func (m *Monitor) suspicionScoreLocked() int {
	if m.session == nil {
		return 0
	}

	score := m.session.TabSwitches * 10
	if score > 30 {
		score = 30
	}

	for _, ev := range m.session.Events {
		switch ev.Severity {
		case SeverityHigh:
			score += 20
		case SeverityMedium:
			score += 10
		default:
			score += 5
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}

// IsSuspicious reports whether the score crossed SuspicionThreshold.
func (m *Monitor) IsSuspicious() bool {
	return m.SuspicionScore() >= SuspicionThreshold
}

// SessionReport builds the report submitted alongside answers. Returns nil
// when no session is active.
func (m *Monitor) SessionReport() *Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}

	var avg float64
	if n := len(m.session.AnswerTimings); n > 0 {
		var total time.Duration
		for _, d := range m.session.AnswerTimings {
			total += d
		}
		avg = float64(total.Milliseconds()) / float64(n)
	}

	score := m.suspicionScoreLocked()
	return &Report{
		SessionID:         m.session.SessionID,
		Duration:          m.now().Sub(m.session.StartTime).Milliseconds(),
		TabSwitches:       m.session.TabSwitches,
		SuspiciousEvents:  len(m.session.Events),
		SuspicionScore:    score,
		IsSuspicious:      score >= SuspicionThreshold,
		AverageAnswerTime: avg,
		Events:            append([]CheatEvent(nil), m.session.Events...),
	}
}

// AddListener registers a callback receiving every CheatEvent as it is
// logged, synchronously, in registration order. The returned closure removes
// exactly that registration; repeat calls are no-ops.
func (m *Monitor) AddListener(fn func(CheatEvent)) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, cheatListener{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, l := range m.listeners {
			if l.id == id {
				m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// handleSignal converts environment observations into CheatEvents.
func (m *Monitor) handleSignal(sig Signal) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return
	}

	var (
		ev       CheatEvent
		busLevel security.Level
		busMsg   string
	)

	switch sig.Kind {
	case SignalTabHidden:
		m.session.TabSwitches++
		switches := m.session.TabSwitches
		severity := SeverityMedium
		busLevel = security.LevelWarning
		if switches > MaxTabSwitches {
			severity = SeverityHigh
			busLevel = security.LevelCritical
		}
		ev = CheatEvent{
			Type:      CheatTabSwitch,
			Timestamp: m.now(),
			Severity:  severity,
			Metadata:  map[string]any{"totalSwitches": switches},
		}
		busMsg = "Tab switch detected"

	case SignalCopy:
		ev = CheatEvent{Type: CheatCopyAttempt, Timestamp: m.now(), Severity: SeverityMedium}
		busLevel = security.LevelWarning
		busMsg = "Copy attempt detected"

	case SignalPaste:
		ev = CheatEvent{Type: CheatPasteAttempt, Timestamp: m.now(), Severity: SeverityLow}
		busLevel = security.LevelWarning
		busMsg = "Paste attempt detected"

	case SignalContextMenu:
		ev = CheatEvent{Type: CheatContextMenu, Timestamp: m.now(), Severity: SeverityLow}

	case SignalDevToolsShortcut:
		ev = CheatEvent{
			Type:      CheatDeveloperTools,
			Timestamp: m.now(),
			Severity:  SeverityHigh,
			Metadata:  sig.Meta,
		}
		busLevel = security.LevelCritical
		busMsg = "Developer tools shortcut detected"

	case SignalWindowGeometry:
		if !geometrySuggestsInspector(sig.Meta) {
			m.mu.Unlock()
			return
		}
		ev = CheatEvent{Type: CheatDeveloperTools, Timestamp: m.now(), Severity: SeverityHigh}
		busLevel = security.LevelCritical
		busMsg = "Developer tools possibly open"

	default:
		m.mu.Unlock()
		return
	}

	m.session.Events = append(m.session.Events, ev)
	listeners := make([]cheatListener, len(m.listeners))
	copy(listeners, m.listeners)
	sessionID := m.session.SessionID
	m.mu.Unlock()

	for _, l := range listeners {
		l.fn(ev)
	}

	if busMsg != "" {
		meta := map[string]any{"sessionId": sessionID}
		for k, v := range ev.Metadata {
			meta[k] = v
		}
		m.bus.Log(security.EventSuspiciousActivity, busLevel, busMsg, meta)
	}
}

func geometrySuggestsInspector(meta map[string]any) bool {
	width, _ := meta["widthDelta"].(int)
	height, _ := meta["heightDelta"].(int)
	return width > geometryDelta || height > geometryDelta
}

// logCheatEvent appends ev to the session and notifies a snapshot of the
// listener list. No-op when the session was torn down concurrently.
func (m *Monitor) logCheatEvent(ev CheatEvent) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return
	}
	m.session.Events = append(m.session.Events, ev)
	listeners := make([]cheatListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, l := range listeners {
		l.fn(ev)
	}
}
