// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ingest feeds bookmaker odds into the ground-truth store: from an
// HTTP feed, a NATS subject, the API or a file.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"

	"github.com/betspecs/betspecs/internal/audit"
	xglog "github.com/betspecs/betspecs/internal/log"
	"github.com/betspecs/betspecs/internal/metrics"
	"github.com/betspecs/betspecs/internal/odds"
	"github.com/betspecs/betspecs/internal/store"
	"github.com/betspecs/betspecs/internal/telemetry"
)

// Sources label where a snapshot came from.
const (
	SourceAPI    = "api"
	SourcePoller = "poller"
	SourceNATS   = "nats"
	SourceFile   = "file"
)

// MaxSnapshotBytes caps a decoded snapshot document.
const MaxSnapshotBytes = 16 << 20

// ErrInvalidSnapshot wraps decode and validation failures.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Applier persists normalised snapshots.
type Applier interface {
	ApplySnapshot(ctx context.Context, snap odds.Snapshot) (store.ApplyStats, error)
}

// Invalidator drops cached events after their ground truth changes.
type Invalidator interface {
	Invalidate(ctx context.Context, ids ...string)
}

// Ingestor validates, normalises and stores snapshots.
type Ingestor struct {
	store      Applier
	cache      Invalidator
	normalizer *Normalizer
	audit      *audit.Logger
	logger     zerolog.Logger

	mu      sync.Mutex
	last    time.Time
	lastErr string
}

// NewIngestor wires an Ingestor. cache and auditLog may be nil.
func NewIngestor(st Applier, cache Invalidator, normalizer *Normalizer, auditLog *audit.Logger) *Ingestor {
	if normalizer == nil {
		normalizer = NewNormalizer(nil)
	}
	return &Ingestor{
		store:      st,
		cache:      cache,
		normalizer: normalizer,
		audit:      auditLog,
		logger:     xglog.WithComponent("ingest"),
	}
}

// DecodeSnapshot strictly decodes a snapshot document; unknown fields are
// rejected.
func DecodeSnapshot(r io.Reader) (odds.Snapshot, error) {
	dec := json.NewDecoder(io.LimitReader(r, MaxSnapshotBytes))
	dec.DisallowUnknownFields()

	var snap odds.Snapshot
	if err := dec.Decode(&snap); err != nil {
		return odds.Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if dec.More() {
		return odds.Snapshot{}, fmt.Errorf("%w: trailing data after snapshot", ErrInvalidSnapshot)
	}
	return snap, nil
}

// Apply validates, normalises and stores snap, then invalidates cached
// copies of the touched events.
func (i *Ingestor) Apply(ctx context.Context, source string, snap odds.Snapshot) (store.ApplyStats, error) {
	ctx, span := telemetry.Tracer("betspecs/ingest").Start(ctx, "ingest.apply")
	defer span.End()

	stats, err := i.apply(ctx, snap)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		i.fail(ctx, source, err)
		return store.ApplyStats{}, err
	}
	span.SetAttributes(telemetry.IngestAttributes(source, snap.Provider, stats.Events, stats.Changed)...)

	now := time.Now()
	i.mu.Lock()
	i.last, i.lastErr = now, ""
	i.mu.Unlock()

	metrics.RecordSnapshotIngest(source, "success", stats.Changed, float64(now.Unix()))
	if i.audit != nil {
		i.audit.SnapshotIngested(ctx, source, snap.Provider, stats.Events, stats.Changed)
	}
	i.logger.Info().
		Str(xglog.FieldEvent, "ingest.applied").
		Str("source", source).
		Str(xglog.FieldProvider, snap.Provider).
		Int("events", stats.Events).
		Int("lines", stats.Lines).
		Int("changed", stats.Changed).
		Msg("snapshot applied")
	return stats, nil
}

func (i *Ingestor) apply(ctx context.Context, snap odds.Snapshot) (store.ApplyStats, error) {
	// Normalise first: spread and total lines only validate once marked as points.
	norm, err := i.normalizer.Normalize(snap)
	if err != nil {
		return store.ApplyStats{}, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if err := norm.Validate(); err != nil {
		return store.ApplyStats{}, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	stats, err := i.store.ApplySnapshot(ctx, norm)
	if err != nil {
		return store.ApplyStats{}, fmt.Errorf("store snapshot: %w", err)
	}
	if i.cache != nil && len(norm.Events) > 0 {
		ids := make([]string, len(norm.Events))
		for k, e := range norm.Events {
			ids[k] = e.ID
		}
		i.cache.Invalidate(ctx, ids...)
	}
	return stats, nil
}

func (i *Ingestor) fail(ctx context.Context, source string, err error) {
	i.mu.Lock()
	i.lastErr = err.Error()
	i.mu.Unlock()

	metrics.RecordSnapshotIngest(source, "failure", 0, 0)
	if i.audit != nil {
		i.audit.SnapshotRejected(ctx, source, err.Error())
	}
	i.logger.Warn().
		Err(err).
		Str(xglog.FieldEvent, "ingest.rejected").
		Str("source", source).
		Msg("snapshot rejected")
}

// ApplyReader decodes and applies a snapshot document.
func (i *Ingestor) ApplyReader(ctx context.Context, source string, r io.Reader) (store.ApplyStats, error) {
	snap, err := DecodeSnapshot(r)
	if err != nil {
		i.fail(ctx, source, err)
		return store.ApplyStats{}, err
	}
	return i.Apply(ctx, source, snap)
}

// LoadFile applies the snapshot stored at path.
func (i *Ingestor) LoadFile(ctx context.Context, path string) (store.ApplyStats, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return store.ApplyStats{}, fmt.Errorf("read snapshot: %w", err)
	}
	return i.ApplyReader(ctx, SourceFile, bytes.NewReader(data))
}

// LastApplied returns the time of the last successful ingest and the last
// error message, if the most recent attempt failed.
func (i *Ingestor) LastApplied() (time.Time, string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.last, i.lastErr
}
