// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID      = "request_id"
	FieldCorrelationID  = "correlation_id"
	FieldEventID        = "event_id"
	FieldMarketID       = "market_id"
	FieldBetID          = "bet_id"
	FieldVerificationID = "verification_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldProvider  = "provider"
	FieldAttempt   = "attempt"

	// Verification fields
	FieldStatus    = "status"
	FieldClaimType = "claim_type"
	FieldSelection = "selection"

	// Path / URL fields
	FieldPath    = "path"
	FieldFeedURL = "feed_url"
	FieldSubject = "subject"
)
