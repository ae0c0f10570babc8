// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "betspecs_upstream_state",
		Help: "Upstream health by component (up=1, degraded=1, down=1; others 0)",
	}, []string{"component", "state"})

	upstreamRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betspecs_upstream_retries_total",
		Help: "Total number of retried upstream calls",
	}, []string{"component", "reason"})
)

var upstreamStates = []string{"up", "degraded", "down"}

// SetUpstreamState records the current state of an upstream (odds feed, AI provider).
func SetUpstreamState(component, state string) {
	for _, s := range upstreamStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		upstreamState.WithLabelValues(component, s).Set(value)
	}
}

// RecordUpstreamRetry increments the retry counter for a component.
func RecordUpstreamRetry(component, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	upstreamRetries.WithLabelValues(component, reason).Inc()
}

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "betspecs_circuit_breaker_state",
		Help: "Circuit breaker state by component (closed=1, half-open=1, open=1; others 0)",
	}, []string{"component", "state"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betspecs_circuit_breaker_trips_total",
		Help: "Total number of circuit breaker trips (transitions to open state)",
	}, []string{"component", "reason"})
)

var breakerStates = []string{"closed", "half-open", "open"}

// SetCircuitBreakerState records the active circuit breaker state for a component.
func SetCircuitBreakerState(component, state string) {
	for _, s := range breakerStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		breakerState.WithLabelValues(component, s).Set(value)
	}
}

// RecordCircuitBreakerTrip increments the trip counter when a breaker opens.
func RecordCircuitBreakerTrip(component, reason string) {
	breakerTrips.WithLabelValues(component, reason).Inc()
}
