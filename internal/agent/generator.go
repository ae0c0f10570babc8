// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	xglog "github.com/betspecs/betspecs/internal/log"
	"github.com/betspecs/betspecs/internal/metrics"
)

const upstreamComponent = "anthropic"

// Request describes one generation round.
type Request struct {
	EventID        string   `json:"event_id"`
	PredictionType string   `json:"prediction_type,omitempty"`
	Question       string   `json:"question,omitempty"`
	Feedback       []string `json:"-"`
	Anchor         string   `json:"-"`
}

// Generator produces raw model output for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// RetryConfig controls retries of upstream calls.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns three retries starting at one second.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// AnthropicConfig configures an AnthropicGenerator.
type AnthropicConfig struct {
	APIKey        string
	Model         string
	MaxTokens     int
	MaxConcurrent int
	Timeout       time.Duration // per attempt
	Retry         RetryConfig
}

type sendFunc func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)

// AnthropicGenerator calls the Anthropic Messages API.
type AnthropicGenerator struct {
	send      sendFunc
	model     string
	maxTokens int
	timeout   time.Duration
	retry     RetryConfig
	sem       *semaphore.Weighted
	logger    zerolog.Logger
}

// NewAnthropicGenerator builds a generator. Extra request options (base URL,
// HTTP client) are passed to the SDK client.
func NewAnthropicGenerator(cfg AnthropicConfig, opts ...option.RequestOption) (*AnthropicGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	// Retries are ours; the SDK's own would multiply them.
	opts = append([]option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}, opts...)
	client := anthropic.NewClient(opts...)

	return newAnthropicGenerator(cfg, func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
		return client.Messages.New(ctx, params)
	}), nil
}

func newAnthropicGenerator(cfg AnthropicConfig, send sendFunc) *AnthropicGenerator {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	g := &AnthropicGenerator{
		send:      send,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		retry:     cfg.Retry,
		logger:    xglog.WithComponent("generator"),
	}
	if cfg.MaxConcurrent > 0 {
		g.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return g
}

// Model returns the configured model name.
func (g *AnthropicGenerator) Model() string { return g.model }

// Generate sends the rendered prompt and returns the concatenated text blocks.
func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	prompt := BuildPrompt(req)

	var resp *anthropic.Message
	err := g.retryWithBackoff(ctx, func(attemptCtx context.Context) error {
		r, err := g.send(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(g.model),
			MaxTokens: int64(g.maxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		metrics.RecordGeneration("error", time.Since(start).Seconds())
		return "", fmt.Errorf("anthropic generate: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	g.logger.Debug().
		Str(xglog.FieldEvent, "generator.completed").
		Str(xglog.FieldEventID, req.EventID).
		Int64("input_tokens", resp.Usage.InputTokens).
		Int64("output_tokens", resp.Usage.OutputTokens).
		Dur("duration", time.Since(start)).
		Msg("generation completed")
	return text.String(), nil
}

func (g *AnthropicGenerator) retryWithBackoff(ctx context.Context, fn func(context.Context) error) error {
	if g.sem != nil {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("wait for generation slot: %w", err)
		}
		defer g.sem.Release(1)
	}

	var lastErr error
	backoff := g.retry.InitialBackoff

	for attempt := 0; attempt <= g.retry.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled before attempt %d: %w", attempt+1, err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			metrics.SetUpstreamState(upstreamComponent, "up")
			return nil
		}
		lastErr = err

		reason, retriable := classifyError(err)
		if !retriable {
			metrics.SetUpstreamState(upstreamComponent, "degraded")
			return err
		}
		metrics.SetUpstreamState(upstreamComponent, "down")
		if attempt == g.retry.MaxRetries {
			break
		}
		metrics.RecordUpstreamRetry(upstreamComponent, reason)

		g.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "generator.retry").
			Int(xglog.FieldAttempt, attempt+1).
			Str("reason", reason).
			Dur("backoff", backoff).
			Msg("retrying generation")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("context canceled during backoff: %w", ctx.Err())
		}
		backoff = time.Duration(float64(backoff) * g.retry.BackoffMultiplier)
		if backoff > g.retry.MaxBackoff {
			backoff = g.retry.MaxBackoff
		}
	}
	return fmt.Errorf("generation failed after %d attempts: %w", g.retry.MaxRetries+1, lastErr)
}

// classifyError reports a metric reason and whether err is worth retrying.
// Rate limits, server errors, timeouts and connection failures are; other
// client errors are not.
func classifyError(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout", true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return "rate_limit", true
		case apiErr.StatusCode >= http.StatusInternalServerError:
			return "server_error", true
		default:
			return "client_error", false
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"):
		return "rate_limit", true
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "temporary failure"),
		strings.Contains(msg, "network"):
		return "network", true
	case strings.Contains(msg, "timeout"):
		return "timeout", true
	}
	return "unknown", false
}

// BuildPrompt renders the generation prompt for req.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are a sports betting analyst. Make one prediction for the event below.\n")
	b.WriteString("Use only the verified odds data provided. Quote prices exactly as listed.\n\n")

	if req.Anchor != "" {
		b.WriteString("Verified data:\n")
		b.WriteString(req.Anchor)
		if !strings.HasSuffix(req.Anchor, "\n") {
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	if req.Question != "" {
		fmt.Fprintf(&b, "Question: %s\n\n", req.Question)
	}
	if len(req.Feedback) > 0 {
		b.WriteString("Your previous answer was rejected by verification:\n")
		for _, f := range req.Feedback {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("Correct these errors.\n\n")
	}

	marketType := req.PredictionType
	if marketType == "" {
		marketType = "moneyline"
	}
	b.WriteString("Respond with a single JSON object and nothing else:\n")
	fmt.Fprintf(&b, `{"event_id": %q, "prediction_type": %q, "selection": "<team or side>", "odds": <number>, "confidence": <0..1>, "reasoning": "<short>"}`,
		req.EventID, marketType)
	b.WriteByte('\n')
	return b.String()
}
