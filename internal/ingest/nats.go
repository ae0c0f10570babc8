// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ingest

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	xglog "github.com/betspecs/betspecs/internal/log"
	"github.com/betspecs/betspecs/internal/metrics"
)

const natsComponent = "nats"

// Subscriber consumes snapshot documents published on a NATS subject.
// Malformed messages are logged and counted; they never stop the loop.
type Subscriber struct {
	url      string
	subject  string
	ingestor *Ingestor
	logger   zerolog.Logger
}

// NewSubscriber returns a Subscriber for subject on the server at url.
func NewSubscriber(url, subject string, ingestor *Ingestor) *Subscriber {
	return &Subscriber{
		url:      url,
		subject:  subject,
		ingestor: ingestor,
		logger:   xglog.WithComponent("nats"),
	}
}

// Run connects, subscribes and blocks until ctx is canceled, then drains.
func (s *Subscriber) Run(ctx context.Context) error {
	nc, err := nats.Connect(s.url,
		nats.Name("betspecs-ingest"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			metrics.SetUpstreamState(natsComponent, "down")
			s.logger.Warn().Err(err).Str(xglog.FieldEvent, "nats.disconnected").Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(*nats.Conn) {
			metrics.SetUpstreamState(natsComponent, "up")
			s.logger.Info().Str(xglog.FieldEvent, "nats.reconnected").Msg("NATS reconnected")
		}),
	)
	if err != nil {
		metrics.SetUpstreamState(natsComponent, "down")
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()
	metrics.SetUpstreamState(natsComponent, "up")

	// Handle messages on one goroutine so snapshots apply in publish order.
	msgs := make(chan *nats.Msg, 64)
	sub, err := nc.ChanSubscribe(s.subject, msgs)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}

	s.logger.Info().
		Str(xglog.FieldEvent, "nats.subscribed").
		Str(xglog.FieldSubject, s.subject).
		Msg("listening for odds snapshots")

	for {
		select {
		case <-ctx.Done():
			_ = sub.Unsubscribe()
			if err := nc.Drain(); err != nil {
				s.logger.Warn().Err(err).Msg("NATS drain failed")
			}
			return nil
		case msg := <-msgs:
			s.Handle(ctx, msg.Subject, msg.Data)
		}
	}
}

// Handle applies one message payload.
func (s *Subscriber) Handle(ctx context.Context, subject string, data []byte) {
	if _, err := s.ingestor.ApplyReader(ctx, SourceNATS, bytes.NewReader(data)); err != nil {
		s.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "nats.message_rejected").
			Str(xglog.FieldSubject, subject).
			Int("bytes", len(data)).
			Msg("dropping snapshot message")
	}
}

// Publish sends a snapshot document to subject and waits for the server to
// acknowledge the flush.
func Publish(ctx context.Context, url, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	if _, err := DecodeSnapshot(bytes.NewReader(data)); err != nil {
		return err
	}

	nc, err := nats.Connect(url, nats.Name("betspecs-cli"))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	if err := nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := nc.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	return nil
}
