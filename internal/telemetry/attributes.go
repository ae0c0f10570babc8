// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	// Ground truth
	EventIDKey   = "betspecs.event_id"
	MarketIDKey  = "betspecs.market_id"
	SelectionKey = "betspecs.selection"
	ProviderKey  = "betspecs.provider"

	// Verification
	PredictionTypeKey = "verify.prediction_type"
	PassedKey         = "verify.passed"
	ResultsKey        = "verify.results"
	FailedKey         = "verify.failed"

	// Generation
	AttemptKey = "generate.attempt"
	ModelKey   = "generate.model"

	// Ingest
	IngestSourceKey  = "ingest.source"
	IngestEventsKey  = "ingest.events"
	IngestChangedKey = "ingest.changed"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// ClaimAttributes describes the prediction being verified. Empty values are
// omitted.
func ClaimAttributes(eventID, predictionType, selection string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if eventID != "" {
		attrs = append(attrs, attribute.String(EventIDKey, eventID))
	}
	if predictionType != "" {
		attrs = append(attrs, attribute.String(PredictionTypeKey, predictionType))
	}
	if selection != "" {
		attrs = append(attrs, attribute.String(SelectionKey, selection))
	}
	return attrs
}

// OutcomeAttributes summarises a verification.
func OutcomeAttributes(passed bool, results, failed int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(PassedKey, passed),
		attribute.Int(ResultsKey, results),
		attribute.Int(FailedKey, failed),
	}
}

// GenerationAttributes describes one LLM attempt.
func GenerationAttributes(model string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ModelKey, model),
		attribute.Int(AttemptKey, attempt),
	}
}

// IngestAttributes describes an applied snapshot.
func IngestAttributes(source, provider string, events, changed int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(IngestSourceKey, source),
		attribute.String(ProviderKey, provider),
		attribute.Int(IngestEventsKey, events),
		attribute.Int(IngestChangedKey, changed),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
