// Package wfm is the HTTP client for the remote marketplace: orders,
// the tradable-item catalog, and per-item price statistics. Transport,
// retry/backoff, rate limiting and circuit breaking are generalized from
// the teacher's internal/esi client, which talks to a different (EVE
// Online) remote API with the same shape of problem: a rate-limited
// JSON API that occasionally returns transient 5xx errors.
package wfm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"wfm-pricer/internal/config"
	"wfm-pricer/internal/logger"
	"wfm-pricer/internal/metrics"
)

const (
	maxRetries    = 3
	retryBaseWait = 500 * time.Millisecond
	component     = "WFM"
)

// Client is a rate-limited, circuit-broken HTTP client for the
// marketplace API. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL string
	token   string

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	sem     chan struct{}
}

// New builds a client from the operator's settings.
func New(settings *config.Settings) *Client {
	cbSettings := gobreaker.Settings{
		Name:        "wfm",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
	return &Client{
		http:    &http.Client{Timeout: 20 * time.Second},
		baseURL: settings.APIBaseURL,
		token:   settings.APIToken,
		limiter: rate.NewLimiter(rate.Limit(settings.RequestsPerSecond), settings.Burst),
		breaker: gobreaker.NewCircuitBreaker[[]byte](cbSettings),
		sem:     make(chan struct{}, 10),
	}
}

func (c *Client) getJSON(ctx context.Context, path string, dst interface{}) error {
	raw, err := c.doWithRetry(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if dst == nil {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func (c *Client) getRaw(ctx context.Context, path string) ([]byte, error) {
	return c.doWithRetry(ctx, http.MethodGet, path, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, body, dst interface{}) error {
	return c.writeJSON(ctx, http.MethodPost, path, body, dst)
}

func (c *Client) putJSON(ctx context.Context, path string, body, dst interface{}) error {
	return c.writeJSON(ctx, http.MethodPut, path, body, dst)
}

func (c *Client) deleteJSON(ctx context.Context, path string, dst interface{}) error {
	return c.writeJSON(ctx, http.MethodDelete, path, nil, dst)
}

func (c *Client) writeJSON(ctx context.Context, method, path string, body, dst interface{}) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		payload = b
	}
	raw, err := c.doWithRetry(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if dst == nil {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// doWithRetry runs one logical request through the circuit breaker. Every
// breaker execution attempts up to maxRetries retries internally on
// transient (429/502/503/504) statuses with exponential backoff, exactly
// as the teacher's GetJSON/PostJSON do — generalized here to cover every
// HTTP method through one helper instead of one copy per verb.
func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		return c.attemptWithRetry(ctx, method, path, body)
	})
}

func (c *Client) attemptWithRetry(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			metrics.MarketplaceRetriesTotal.Inc()
			wait := retryBaseWait * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		c.sem <- struct{}{}
		respBody, status, err := c.do(ctx, method, path, body)
		<-c.sem

		if err != nil {
			lastErr = err
			logger.Warn(component, fmt.Sprintf("request failed (attempt %d/%d): %v", attempt+1, maxRetries+1, err))
			continue
		}
		if status == http.StatusOK {
			metrics.MarketplaceRequestsTotal.WithLabelValues(method, statusClass(status)).Inc()
			return respBody, nil
		}

		lastErr = &apiError{Method: method, Path: path, Status: status, Body: respBody}
		if !isRetryable(status) {
			metrics.MarketplaceRequestsTotal.WithLabelValues(method, statusClass(status)).Inc()
			return nil, lastErr
		}
		logger.Warn(component, fmt.Sprintf("retryable status %d (attempt %d/%d): %s", status, attempt+1, maxRetries+1, path))
	}
	metrics.MarketplaceRequestsTotal.WithLabelValues(method, "error").Inc()
	return nil, lastErr
}

func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "error"
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "JWT "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return raw, resp.StatusCode, nil
}

// apiError carries the raw response body of a failed request so callers
// that care about a specific marketplace error code (e.g. order_limit_reached)
// can inspect it without re-parsing a formatted error string.
type apiError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *apiError) Error() string {
	return fmt.Sprintf("wfm %s %s: HTTP %d: %s", e.Method, e.Path, e.Status, string(e.Body))
}

func isRetryable(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout
}
