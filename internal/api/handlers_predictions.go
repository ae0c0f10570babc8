// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/betspecs/betspecs/internal/agent"
	"github.com/betspecs/betspecs/internal/api/problem"
	"github.com/betspecs/betspecs/internal/store"
	"github.com/betspecs/betspecs/internal/trust"
)

const (
	defaultVerificationLimit = 100
	maxVerificationLimit     = 1000
)

type predictionRequest struct {
	EventID        string `json:"event_id"`
	PredictionType string `json:"prediction_type"`
	Question       string `json:"question"`
}

func (s *Server) handleGeneratePrediction(w http.ResponseWriter, r *http.Request) {
	if s.deps.Guard == nil || !s.deps.Guard.Enabled() {
		s.writeError(w, r, agent.ErrNoGenerator)
		return
	}

	var req predictionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.EventID) == "" {
		s.writeError(w, r, fmt.Errorf("%w: event_id is required", errBadRequest))
		return
	}

	res, err := s.deps.Guard.Run(r.Context(), agent.Request{
		EventID:        req.EventID,
		PredictionType: strings.ToLower(strings.TrimSpace(req.PredictionType)),
		Question:       req.Question,
	})
	if errors.Is(err, agent.ErrRejected) {
		problem.Write(w, r, http.StatusUnprocessableEntity, "predictions/rejected", "Prediction Rejected", "REJECTED",
			err.Error(), map[string]any{
				"attempts":      len(res.Attempts),
				"discrepancies": res.Outcome.Feedback(),
				"outcome":       res.Outcome,
			})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type verificationList struct {
	Items []trust.Result `json:"items"`
}

func (s *Server) handleListVerifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{EventID: q.Get("event_id"), Limit: defaultVerificationLimit}

	if v := q.Get("status"); v != "" {
		st := trust.Status(v)
		if !st.Valid() {
			s.writeError(w, r, fmt.Errorf("%w: unknown status %q", errBadRequest, v))
			return
		}
		f.Status = st
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxVerificationLimit {
			s.writeError(w, r, fmt.Errorf("%w: limit must be between 1 and %d", errBadRequest, maxVerificationLimit))
			return
		}
		f.Limit = n
	}

	items, err := s.deps.Store.ListVerifications(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []trust.Result{}
	}
	writeJSON(w, http.StatusOK, verificationList{Items: items})
}

type verificationSummary struct {
	// Stored covers every persisted check.
	Stored trust.Summary `json:"stored"`
	// Session covers checks since this process started.
	Session trust.Summary `json:"session"`
}

func (s *Server) handleVerificationSummary(w http.ResponseWriter, r *http.Request) {
	stored, err := s.deps.Store.VerificationCounts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verificationSummary{
		Stored:  stored,
		Session: s.deps.Agent.Validator().Summary(),
	})
}
