// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betspecs/betspecs/internal/trust"
)

// ErrMalformedPrediction is returned when model output holds no usable
// prediction object.
var ErrMalformedPrediction = errors.New("malformed prediction")

var (
	codeFenceRegex     = regexp.MustCompile(`(?s)` + "`{3}" + `(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`{3}")
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
	objectRegex        = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
)

type predictionDoc struct {
	EventID        string           `json:"event_id"`
	PredictionType string           `json:"prediction_type"`
	Selection      string           `json:"selection"`
	Odds           *decimal.Decimal `json:"odds"`
	Confidence     *float64         `json:"confidence"`
	Reasoning      string           `json:"reasoning"`
}

// ParsePrediction extracts a prediction from raw model output. It tries the
// text as-is, then without markdown fences, then with trailing commas
// removed, then the outermost {...} span.
func ParsePrediction(text string) (trust.Prediction, error) {
	candidates := []string{strings.TrimSpace(text)}
	if m := codeFenceRegex.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if obj := objectRegex.FindString(text); obj != "" {
		candidates = append(candidates, obj)
	}

	var lastErr error
	for _, c := range candidates {
		for _, body := range []string{c, trailingCommaRegex.ReplaceAllString(c, "$1")} {
			p, err := decodePrediction(body)
			if err == nil {
				return p, nil
			}
			lastErr = err
		}
	}
	return trust.Prediction{}, fmt.Errorf("%w: %w", ErrMalformedPrediction, lastErr)
}

func decodePrediction(body string) (trust.Prediction, error) {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()

	var doc predictionDoc
	if err := dec.Decode(&doc); err != nil {
		return trust.Prediction{}, err
	}
	if dec.More() {
		return trust.Prediction{}, errors.New("trailing data after prediction")
	}

	var missing []string
	if strings.TrimSpace(doc.EventID) == "" {
		missing = append(missing, "event_id")
	}
	if strings.TrimSpace(doc.Selection) == "" {
		missing = append(missing, "selection")
	}
	if doc.Odds == nil {
		missing = append(missing, "odds")
	}
	if doc.Confidence == nil {
		missing = append(missing, "confidence")
	}
	if len(missing) > 0 {
		return trust.Prediction{}, fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}

	return trust.Prediction{
		EventID:        strings.TrimSpace(doc.EventID),
		PredictionType: strings.ToLower(strings.TrimSpace(doc.PredictionType)),
		Selection:      strings.TrimSpace(doc.Selection),
		OddsClaimed:    *doc.Odds,
		Confidence:     *doc.Confidence,
		Reasoning:      doc.Reasoning,
		GeneratedAt:    time.Now().UTC(),
	}, nil
}
