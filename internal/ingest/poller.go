// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	xglog "github.com/betspecs/betspecs/internal/log"
	"github.com/betspecs/betspecs/internal/metrics"
	"github.com/betspecs/betspecs/internal/resilience"
)

const pollerComponent = "odds_feed"

// pollerBreakerThreshold consecutive failed polls pause the feed for a few
// intervals.
const pollerBreakerThreshold = 5

// Poller fetches snapshots from an HTTP feed on a fixed cadence.
type Poller struct {
	url      string
	interval time.Duration
	client   *http.Client
	ingestor *Ingestor
	breaker  *resilience.CircuitBreaker
	logger   zerolog.Logger

	busy atomic.Bool

	mu   sync.Mutex
	etag string
}

// NewPoller returns a Poller. A nil client uses DefaultClient.
func NewPoller(url string, interval time.Duration, client *http.Client, ingestor *Ingestor) *Poller {
	if client == nil {
		client = DefaultClient()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Poller{
		url:      url,
		interval: interval,
		client:   client,
		ingestor: ingestor,
		breaker:  resilience.NewCircuitBreaker(pollerComponent, pollerBreakerThreshold, 4*interval),
		logger:   xglog.WithComponent("poller"),
	}
}

// DefaultClient returns a 30s timeout client whose requests carry trace
// context to the feed.
func DefaultClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "poll " + r.URL.Host
			}),
		),
	}
}

// Run polls until ctx is canceled. The first fetch happens immediately.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().
		Str(xglog.FieldEvent, "poller.started").
		Str(xglog.FieldFeedURL, p.url).
		Dur("interval", p.interval).
		Msg("odds feed poller started")

	p.tryPoll(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.tryPoll(ctx)
		}
	}
}

// tryPoll skips the tick if the previous fetch is still running.
func (p *Poller) tryPoll(ctx context.Context) {
	if !p.busy.CompareAndSwap(false, true) {
		p.logger.Debug().Str(xglog.FieldEvent, "poller.skipped").Msg("previous fetch still running")
		return
	}
	defer p.busy.Store(false)

	err := p.breaker.Execute(func() error {
		_, err := p.Poll(ctx)
		return err
	})
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		p.logger.Debug().Str(xglog.FieldEvent, "poller.paused").Msg("feed circuit open, skipping poll")
	case err != nil && ctx.Err() == nil:
		p.logger.Warn().Err(err).Str(xglog.FieldEvent, "poller.failed").Str(xglog.FieldFeedURL, p.url).Msg("feed poll failed")
	}
}

// Poll fetches the feed once. It reports false when the feed answered 304.
func (p *Poller) Poll(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.interval+30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	p.mu.Lock()
	if p.etag != "" {
		req.Header.Set("If-None-Match", p.etag)
	}
	p.mu.Unlock()

	resp, err := p.client.Do(req)
	if err != nil {
		metrics.SetUpstreamState(pollerComponent, "down")
		return false, fmt.Errorf("fetch feed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		metrics.SetUpstreamState(pollerComponent, "up")
		return false, nil
	case resp.StatusCode != http.StatusOK:
		metrics.SetUpstreamState(pollerComponent, "degraded")
		return false, fmt.Errorf("feed returned %d", resp.StatusCode)
	}
	metrics.SetUpstreamState(pollerComponent, "up")

	if _, err := p.ingestor.ApplyReader(ctx, SourcePoller, resp.Body); err != nil {
		return false, err
	}

	// Only remember the ETag once the body has been stored.
	if etag := resp.Header.Get("ETag"); etag != "" {
		p.mu.Lock()
		p.etag = etag
		p.mu.Unlock()
	}
	return true, nil
}
