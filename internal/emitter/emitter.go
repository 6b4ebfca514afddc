// Package emitter provides an HTTP client for shipping request metrics to the
// collector from a separate process. In-process callers should record through
// the collector service directly.
package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/domain"
)

const (
	defaultTimeout   = 5 * time.Second
	maxErrorBodySize = 4096

	retryBase     = 500 * time.Millisecond
	maxRetries    = 3
	storeEndpoint = "/metrics/store"
)

// ErrInvalidArgument indicates the collector rejected the metric payload.
var ErrInvalidArgument = errors.New("metrics emitter invalid argument")

// ErrRateLimited indicates the collector is shedding ingest load.
var ErrRateLimited = errors.New("metrics emitter rate limited")

// Emitter ships metrics to the collector's ingest endpoint.
type Emitter struct {
	baseURL string
	client  *http.Client
}

// New creates an emitter for the given collector base URL.
func New(baseURL string, client *http.Client) (*Emitter, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errors.New("metrics emitter base url required")
	}
	trimmed = strings.TrimRight(trimmed, "/")
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	} else if client.Timeout == 0 {
		client.Timeout = defaultTimeout
	}
	return &Emitter{baseURL: trimmed, client: client}, nil
}

// Emit sends one metric, retrying transport failures and server errors with
// exponential backoff. Validation rejections are not retried.
func (e *Emitter) Emit(ctx context.Context, metric domain.Metric) error {
	if e == nil {
		return errors.New("metrics emitter not initialised")
	}
	body, err := json.Marshal(metric)
	if err != nil {
		return fmt.Errorf("marshal metric: %w", err)
	}
	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		return e.send(ctx, body)
	})
}

func (e *Emitter) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+storeEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build metric request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(req)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("send metric request: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}
	summary := readErrorSummary(resp)
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, summary)
	case resp.StatusCode == http.StatusTooManyRequests:
		return retry.RetryableError(fmt.Errorf("%w: %s", ErrRateLimited, summary))
	case resp.StatusCode >= http.StatusInternalServerError:
		return retry.RetryableError(fmt.Errorf("metric request failed: %s", summary))
	default:
		return fmt.Errorf("metric request failed: %s", summary)
	}
}

func readErrorSummary(resp *http.Response) string {
	limited := io.LimitReader(resp.Body, maxErrorBodySize)
	buf, _ := io.ReadAll(limited)
	summary := strings.TrimSpace(string(buf))
	if summary == "" {
		summary = resp.Status
	}
	return summary
}
