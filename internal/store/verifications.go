// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/betspecs/betspecs/internal/trust"
)

// Filter narrows ListVerifications.
type Filter struct {
	EventID string
	Status  trust.Status
	Limit   int
}

// RecordVerification appends a result to the audit log.
func (s *Store) RecordVerification(ctx context.Context, r trust.Result) error {
	meta := []byte("{}")
	if len(r.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(r.Metadata); err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verifications (id, event_id, status, claim_type, claim, source_value, ai_value, discrepancy, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.EventID, string(r.Status), r.ClaimType, r.Claim,
		r.SourceValue, r.AIValue, r.Discrepancy, string(meta), formatTime(r.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert verification %s: %w", r.ID, err)
	}
	return nil
}

// ListVerifications returns audit entries, newest first.
func (s *Store) ListVerifications(ctx context.Context, f Filter) ([]trust.Result, error) {
	var (
		where []string
		args  []any
	)
	if f.EventID != "" {
		where = append(where, "event_id = ?")
		args = append(args, f.EventID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `SELECT id, event_id, status, claim_type, claim, source_value, ai_value, discrepancy, metadata, created_at FROM verifications`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query verifications: %w", err)
	}
	defer rows.Close()

	var out []trust.Result
	for rows.Next() {
		var (
			r            trust.Result
			status, meta string
			createdAt    string
		)
		if err := rows.Scan(&r.ID, &r.EventID, &status, &r.ClaimType, &r.Claim,
			&r.SourceValue, &r.AIValue, &r.Discrepancy, &meta, &createdAt); err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		r.Status = trust.Status(status)
		if meta != "" && meta != "{}" {
			if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", r.ID, err)
			}
		}
		if r.Timestamp, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// VerificationCounts summarises the whole audit log.
func (s *Store) VerificationCounts(ctx context.Context) (trust.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM verifications GROUP BY status`)
	if err != nil {
		return trust.Summary{}, fmt.Errorf("count verifications: %w", err)
	}
	defer rows.Close()

	var sum trust.Summary
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return trust.Summary{}, fmt.Errorf("scan count: %w", err)
		}
		sum.Add(trust.Status(status), n)
	}
	return sum, rows.Err()
}
