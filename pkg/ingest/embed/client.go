// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package embed implements a bounded-concurrency HTTP client for an
// OpenAI-compatible batch embedding endpoint, with retry/backoff and a
// warmup connectivity check.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"sort"
	"time"

	"github.com/kraklabs/ingestctl/pkg/ingest"
)

// FatalError marks a non-retryable embedding failure (e.g. 4xx other than
// 429). Embed returns it immediately without retrying.
type FatalError struct{ msg string }

func (e *FatalError) Error() string { return e.msg }

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedResponseItem struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embedResponse struct {
	Data []embedResponseItem `json:"data"`
}

// Client is a bounded-concurrency embedding HTTP client, grounded on the
// request/response shape and length-mismatch check of
// intelligencedev-manifold's embedding client, combined with a
// RetryPolicy-style field shape for backoff parameters.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	retry      ingest.RetryPolicy
	sem        chan struct{} // process-wide semaphore, size = rate_limit
	logger     *slog.Logger
}

// NewClient constructs a Client bound to cfg's embedding settings. The
// semaphore enforces at most cfg.RateLimit concurrent in-flight calls across
// the whole process.
func NewClient(cfg ingest.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    cfg.EmbeddingBaseURL,
		apiKey:     cfg.EmbeddingAPIKey,
		model:      cfg.EmbeddingModel,
		timeout:    cfg.RequestTimeout,
		retry:      cfg.Retry,
		sem:        make(chan struct{}, cfg.RateLimit),
		logger:     logger,
	}
}

// Embed submits one batch and returns exactly len(batch) vectors in input
// order, or a failure. A length mismatch in the provider's response is
// itself treated as a failure, never silently truncated or padded.
func (c *Client) Embed(ctx context.Context, batch []string) ([][]float32, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("embed: batch must contain at least one input")
	}

	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	var lastErr error
	backoff := c.retry.InitialBackoff
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := jitter(backoff, c.retry.JitterFraction)
			c.logger.Warn("embed.retry", "attempt", attempt, "wait", wait, "err", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			backoff = time.Duration(math.Min(float64(c.retry.MaxBackoff), float64(backoff)*c.retry.Multiplier))
		}

		vectors, err := c.doEmbed(ctx, batch)
		if err == nil {
			return vectors, nil
		}
		if _, fatal := err.(*FatalError); fatal {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("embed: exhausted %d retries: %w", c.retry.MaxRetries, lastErr)
}

func (c *Client) doEmbed(ctx context.Context, batch []string) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Input: batch, Model: c.model})
	if err != nil {
		return nil, &FatalError{msg: fmt.Sprintf("embed: encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, &FatalError{msg: fmt.Sprintf("embed: build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: transport: %w", err) // timeout/connection error: transient
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("embed: transient status %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode/100 != 2 {
		return nil, &FatalError{msg: fmt.Sprintf("embed: fatal status %d: %s", resp.StatusCode, string(respBody))}
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &FatalError{msg: fmt.Sprintf("embed: decode response: %v", err)}
	}
	if len(parsed.Data) != len(batch) {
		return nil, &FatalError{msg: fmt.Sprintf("embed: response length %d != input length %d", len(parsed.Data), len(batch))}
	}

	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })
	vectors := make([][]float32, len(parsed.Data))
	for i, item := range parsed.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}

// Warmup makes one minimal call to surface auth/connectivity problems
// before bulk work begins.
func (c *Client) Warmup(ctx context.Context) error {
	_, err := c.doEmbed(ctx, []string{"ping"})
	return err
}

func jitter(base time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return base
	}
	delta := float64(base) * fraction
	offset := (rand.Float64()*2 - 1) * delta
	return time.Duration(float64(base) + offset)
}
