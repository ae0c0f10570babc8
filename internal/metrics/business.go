// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Trust layer
	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betspecs_verifications_total",
		Help: "Verification checks by status and claim type",
	}, []string{"status", "claim_type"}) // status=verified|failed|partial|stale|skipped

	verificationRecordErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betspecs_verification_record_errors_total",
		Help: "Total number of verification results that could not be persisted",
	})

	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betspecs_predictions_total",
		Help: "Verified predictions by outcome",
	}, []string{"outcome"}) // outcome=passed|rejected

	// Ingest
	snapshotsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betspecs_snapshots_ingested_total",
		Help: "Odds snapshots ingested by source and outcome",
	}, []string{"source", "outcome"}) // source=file|http|poller|nats, outcome=success|failure|unchanged

	linesStored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "betspecs_lines_changed",
		Help: "Number of lines that changed in the last applied snapshot",
	})

	lastIngestTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "betspecs_last_ingest_timestamp_seconds",
		Help: "Unix time of the last successful snapshot ingest",
	})

	// AI generation
	generationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betspecs_generation_attempts_total",
		Help: "AI generation attempts by outcome",
	}, []string{"outcome"}) // outcome=passed|rejected|error

	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "betspecs_generation_duration_seconds",
		Help:    "Latency of AI generation calls",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
	})

	// Cache
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betspecs_cache_lookups_total",
		Help: "Event cache lookups by result",
	}, []string{"result"}) // result=hit|miss

	// Ledger
	betsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betspecs_bets_total",
		Help: "Bets by lifecycle action",
	}, []string{"action"}) // action=placed|won|lost|push|void

	// Operational metrics
	configReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betspecs_config_reloads_total",
		Help: "Configuration reloads by outcome",
	}, []string{"outcome"}) // outcome=success|failure
)

// RecordVerification counts one verification check.
func RecordVerification(status, claimType string) {
	if claimType == "" {
		claimType = "unknown"
	}
	verificationsTotal.WithLabelValues(status, claimType).Inc()
}

// IncVerificationRecordError counts a verification result that could not be persisted.
func IncVerificationRecordError() {
	verificationRecordErrors.Inc()
}

// RecordPrediction counts a verified prediction.
func RecordPrediction(passed bool) {
	predictionsTotal.WithLabelValues(outcome(passed, "passed", "rejected")).Inc()
}

// RecordSnapshotIngest counts an ingest attempt and, on success, updates the
// change gauge and the last-ingest timestamp.
func RecordSnapshotIngest(source, result string, changed int, unixSeconds float64) {
	snapshotsIngested.WithLabelValues(source, result).Inc()
	if result == "failure" {
		return
	}
	linesStored.Set(float64(changed))
	lastIngestTimestamp.Set(unixSeconds)
}

// RecordGeneration counts a generation attempt and observes its latency.
func RecordGeneration(result string, seconds float64) {
	generationAttempts.WithLabelValues(result).Inc()
	if seconds > 0 {
		generationDuration.Observe(seconds)
	}
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(hit bool) {
	cacheLookups.WithLabelValues(outcome(hit, "hit", "miss")).Inc()
}

// RecordBet counts a bet lifecycle action.
func RecordBet(action string) {
	betsTotal.WithLabelValues(action).Inc()
}

// RecordConfigReload counts a configuration reload.
func RecordConfigReload(success bool) {
	configReloads.WithLabelValues(outcome(success, "success", "failure")).Inc()
}

func outcome(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
