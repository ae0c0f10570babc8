// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/betspecs/betspecs/internal/agent"
	"github.com/betspecs/betspecs/internal/api/problem"
	"github.com/betspecs/betspecs/internal/ingest"
	"github.com/betspecs/betspecs/internal/ledger"
	"github.com/betspecs/betspecs/internal/log"
	"github.com/betspecs/betspecs/internal/ratelimit"
	"github.com/betspecs/betspecs/internal/store"
)

// maxBodyBytes caps JSON request bodies other than snapshots.
const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, title, code, detail string) {
	problem.Write(w, r, status, problemType, title, code, detail, nil)
}

// decodeJSON strictly decodes a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}

// writeError maps domain errors to problem responses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		writeProblem(w, r, http.StatusRequestEntityTooLarge, "request/too_large", "Payload Too Large", "TOO_LARGE", err.Error())
	case errors.Is(err, errBadRequest),
		errors.Is(err, ingest.ErrInvalidSnapshot),
		errors.Is(err, ledger.ErrInvalidBet),
		errors.Is(err, ledger.ErrInvalidStatus):
		writeProblem(w, r, http.StatusBadRequest, "request/invalid", "Bad Request", "INVALID_INPUT", err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeProblem(w, r, http.StatusNotFound, "resource/not_found", "Not Found", "NOT_FOUND", err.Error())
	case errors.Is(err, ledger.ErrAlreadySettled):
		writeProblem(w, r, http.StatusConflict, "bets/already_settled", "Conflict", "ALREADY_SETTLED", err.Error())
	case errors.Is(err, ratelimit.ErrLimited):
		w.Header().Set("Retry-After", "1")
		writeProblem(w, r, http.StatusTooManyRequests, "predictions/rate_limited", "Too Many Requests", "RATE_LIMITED", err.Error())
	case errors.Is(err, agent.ErrNoGenerator):
		writeProblem(w, r, http.StatusServiceUnavailable, "predictions/unavailable", "Service Unavailable", "GENERATOR_DISABLED", err.Error())
	case r.Context().Err() != nil && errors.Is(err, r.Context().Err()):
		// Client went away; nothing useful can be written.
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Debug().Err(err).Msg("request canceled")
	default:
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str(log.FieldPath, r.URL.Path).
			Msg("request failed")
		writeProblem(w, r, http.StatusInternalServerError, "server/internal", "Internal Server Error", "INTERNAL", "")
	}
}
