// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/betspecs/betspecs/internal/ingest"
	"github.com/betspecs/betspecs/internal/log"
	"github.com/betspecs/betspecs/internal/trust"
)

func (s *Server) handleIngestSnapshot(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, ingest.MaxSnapshotBytes)
	stats, err := s.deps.Ingestor.ApplyReader(r.Context(), ingest.SourceAPI, body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "eventID")
	e, err := s.deps.Agent.Event(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type verifyRequest struct {
	EventID        string           `json:"event_id"`
	PredictionType string           `json:"prediction_type"`
	Selection      string           `json:"selection"`
	Odds           *decimal.Decimal `json:"odds"`
	Confidence     *float64         `json:"confidence"`
	Reasoning      string           `json:"reasoning"`
}

func (req verifyRequest) prediction() (trust.Prediction, error) {
	var missing []string
	if strings.TrimSpace(req.EventID) == "" {
		missing = append(missing, "event_id")
	}
	if strings.TrimSpace(req.Selection) == "" {
		missing = append(missing, "selection")
	}
	if req.Odds == nil {
		missing = append(missing, "odds")
	}
	if req.Confidence == nil {
		missing = append(missing, "confidence")
	}
	if len(missing) > 0 {
		return trust.Prediction{}, fmt.Errorf("%w: missing fields: %s", errBadRequest, strings.Join(missing, ", "))
	}
	return trust.Prediction{
		EventID:        req.EventID,
		PredictionType: strings.ToLower(strings.TrimSpace(req.PredictionType)),
		Selection:      req.Selection,
		OddsClaimed:    *req.Odds,
		Confidence:     *req.Confidence,
		Reasoning:      req.Reasoning,
		GeneratedAt:    time.Now().UTC(),
	}, nil
}

// handleVerify checks a caller-supplied prediction. A rejected prediction is
// still a successful request; the body carries passed=false.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := req.prediction()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.deps.Agent.Verify(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !out.Passed {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Info().
			Str(log.FieldEvent, "verify.rejected").
			Str(log.FieldEventID, p.EventID).
			Str(log.FieldSelection, p.Selection).
			Msg("prediction failed verification")
	}
	writeJSON(w, http.StatusOK, out)
}
