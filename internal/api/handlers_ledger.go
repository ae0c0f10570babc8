// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/betspecs/betspecs/internal/ledger"
)

type placeBetRequest struct {
	EventID        string          `json:"event_id"`
	MarketID       string          `json:"market_id"`
	Selection      string          `json:"selection"`
	Odds           decimal.Decimal `json:"odds"`
	Stake          decimal.Decimal `json:"stake"`
	VerificationID string          `json:"verification_id"`
}

func (s *Server) handlePlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	// Bets are only accepted on events present in the ground truth.
	if req.EventID != "" {
		if _, err := s.deps.Agent.Event(r.Context(), req.EventID); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	b, err := s.deps.Ledger.Place(r.Context(), ledger.Bet{
		EventID:        req.EventID,
		MarketID:       req.MarketID,
		Selection:      req.Selection,
		Odds:           req.Odds,
		Stake:          req.Stake,
		VerificationID: req.VerificationID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.deps.Audit != nil {
		s.deps.Audit.BetPlaced(r.Context(), b.ID, b.EventID, b.Stake.String(), b.Odds.String())
	}
	w.Header().Set("Location", "/api/v1/bets/"+b.ID)
	writeJSON(w, http.StatusCreated, b)
}

type settleBetRequest struct {
	Status ledger.Status `json:"status"`
}

func (s *Server) handleSettleBet(w http.ResponseWriter, r *http.Request) {
	var req settleBetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	b, err := s.deps.Ledger.Settle(r.Context(), chi.URLParam(r, "betID"), req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.deps.Audit != nil {
		s.deps.Audit.BetSettled(r.Context(), b.ID, string(b.Status), b.Profit.String())
	}
	writeJSON(w, http.StatusOK, b)
}

type ledgerResponse struct {
	Summary ledger.Summary `json:"summary"`
	Bets    []ledger.Bet   `json:"bets"`
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	bets, err := s.deps.Ledger.Bets(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if bets == nil {
		bets = []ledger.Bet{}
	}
	writeJSON(w, http.StatusOK, ledgerResponse{Summary: ledger.Summarize(bets), Bets: bets})
}
