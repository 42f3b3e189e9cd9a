package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// maxResponseSize caps response bodies read from the provider API (10MB).
const maxResponseSize = 10 * 1024 * 1024

// maxRateLimitWait bounds how long a request blocks waiting for the
// rate-limit window to reset. The wait is never indefinite.
const maxRateLimitWait = 60 * time.Second

// Config holds provider API client settings.
type Config struct {
	BaseURL        string
	APIKey         string
	ShopID         string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// Validate checks that the client can authenticate.
func (c *Config) Validate() error {
	if c.APIKey == "" || c.ShopID == "" {
		return ErrMissingCredentials
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = 500 * time.Millisecond
	}
}

// Client is an authenticated HTTP client for the fulfillment provider API.
// Transport-level retry covers 429 and 5xx responses; rate-limit headers on
// every response update shared quota state so the next call can wait for the
// window to reset instead of burning an attempt.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger

	// Rate-limit state shared across calls. Updated after every response,
	// read before every request.
	mu            sync.Mutex
	rateRemaining int
	rateResetAt   time.Time
	rateKnown     bool

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a provider API client.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
		sleep:      sleepContext,
	}, nil
}

// ---------------------------------------------------------------------------
// Verb helpers
// ---------------------------------------------------------------------------

// Get performs a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, out any) error {
	return c.call(ctx, http.MethodGet, endpoint, params, nil, out)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body, out any) error {
	return c.call(ctx, http.MethodPost, endpoint, nil, body, out)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, body, out any) error {
	return c.call(ctx, http.MethodPut, endpoint, nil, body, out)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string) error {
	return c.call(ctx, http.MethodDelete, endpoint, nil, nil, nil)
}

// ---------------------------------------------------------------------------
// Transport core
// ---------------------------------------------------------------------------

// call executes one logical API call with transport-level retry. Retryable
// failures: HTTP 429, 5xx, and network errors. 4xx (except 429) fails fast.
func (c *Client) call(ctx context.Context, method, endpoint string, params url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("provider: encode request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Backoff: 2^attempt * base delay.
			delay := c.config.RetryBaseDelay * time.Duration(1<<attempt)
			c.logger.Debug("retrying provider request",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return &NetworkError{Err: err}
			}
		}

		if err := c.waitForQuota(ctx); err != nil {
			return err
		}

		retryable, err := c.doOnce(ctx, method, endpoint, params, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return lastErr
}

// doOnce performs a single HTTP exchange. The bool result reports whether
// the failure is retryable at the transport level.
func (c *Client) doOnce(ctx context.Context, method, endpoint string, params url.Values, payload []byte, out any) (bool, error) {
	reqURL := c.config.BaseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return false, fmt.Errorf("provider: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	c.updateRateLimit(resp)

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return true, &NetworkError{Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, &RateLimitedError{RetryAfter: c.untilReset()}
	case resp.StatusCode >= 500:
		return true, &ServerError{Status: resp.StatusCode}
	case resp.StatusCode >= 400:
		return false, &ClientError{Status: resp.StatusCode, Body: truncate(string(respBody), 256)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return false, &ClientError{Status: resp.StatusCode, Body: "malformed response body"}
		}
	}
	return false, nil
}

// waitForQuota blocks until the rate-limit window resets when the tracked
// quota is exhausted. The sleep is bounded by maxRateLimitWait.
func (c *Client) waitForQuota(ctx context.Context) error {
	c.mu.Lock()
	wait := time.Duration(0)
	if c.rateKnown && c.rateRemaining <= 0 {
		wait = time.Until(c.rateResetAt)
	}
	c.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	if wait > maxRateLimitWait {
		wait = maxRateLimitWait
	}
	c.logger.Warn("provider quota exhausted, waiting for reset",
		zap.Duration("wait", wait),
	)
	if err := c.sleep(ctx, wait); err != nil {
		return &NetworkError{Err: err}
	}
	return nil
}

// updateRateLimit applies quota headers from a response to shared state.
func (c *Client) updateRateLimit(resp *http.Response) {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	reset := resp.Header.Get("X-RateLimit-Reset")
	if remaining == "" {
		return
	}

	n, err := strconv.Atoi(remaining)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rateKnown = true
	c.rateRemaining = n
	if seconds, err := strconv.Atoi(reset); err == nil {
		c.rateResetAt = time.Now().Add(time.Duration(seconds) * time.Second)
	}
}

func (c *Client) untilReset() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d := time.Until(c.rateResetAt); d > 0 {
		return d
	}
	return c.config.RetryBaseDelay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
