// Package metrics exposes Prometheus counters for the quiz API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/quizguard/quizguard/internal/security"
)

var (
	// Submissions counts quiz submissions by outcome: accepted, blocked,
	// invalid, error.
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizguard_submissions_total",
		Help: "Quiz submissions by outcome.",
	}, []string{"outcome"})

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizguard_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	})

	// BlockedSessions counts sessions blocked for suspicious activity.
	BlockedSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizguard_blocked_sessions_total",
		Help: "Sessions blocked for suspicious activity.",
	})

	// SecurityEvents counts security events by level.
	SecurityEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizguard_security_events_total",
		Help: "Security events logged, by level.",
	}, []string{"level"})
)

// ObserveBus wires the security event counter to a bus. Returns the
// unsubscribe function.
func ObserveBus(bus *security.Bus) func() {
	return bus.Subscribe(func(ev security.Event) {
		SecurityEvents.WithLabelValues(string(ev.Level)).Inc()
	})
}
