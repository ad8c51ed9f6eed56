// Package http provides an HTTP client with retries, timeouts, and logging capabilities
package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	customErrors "github.com/tuannvm/mcp-creative-agent/internal/common/errors"
	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
)

// ClientOptions configures the HTTP client behavior
type ClientOptions struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
	UserAgent    string
	Logger       *logging.Logger
	Transport    http.RoundTripper
}

// DefaultOptions returns sensible default client options
func DefaultOptions() ClientOptions {
	return ClientOptions{
		Timeout:      30 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
		MaxBackoff:   5 * time.Second,
		UserAgent:    "mcp-creative-agent/1.0",
	}
}

// Client is a wrapper around http.Client with retry and logging
type Client struct {
	client  *http.Client
	options ClientOptions
}

// NewClient creates a new HTTP client with the given options
func NewClient(options ClientOptions) *Client {
	if options.Logger == nil {
		options.Logger = logging.New("http-client", logging.LevelInfo)
	}
	return &Client{
		client: &http.Client{
			Timeout:   options.Timeout,
			Transport: options.Transport,
		},
		options: options,
	}
}

// DoRequest performs an HTTP request with retries and logging.
// body, when non-nil, is sent as JSON.
func (c *Client) DoRequest(ctx context.Context, method, rawURL string, body interface{}, headers map[string]string) ([]byte, int, error) {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, 0, customErrors.WrapHTTPError(err, "marshal_failed", "failed to marshal request body")
		}
	}

	c.options.Logger.DebugKV("HTTP request", "method", method, "url", rawURL, "body_bytes", len(bodyBytes))
	return c.performRequestWithRetries(ctx, method, rawURL, bodyBytes, headers)
}

// GetJSON performs a GET with query parameters and decodes the JSON response into target
func (c *Client) GetJSON(ctx context.Context, baseURL string, query url.Values, target interface{}) (int, error) {
	fullURL := baseURL
	if len(query) > 0 {
		fullURL = baseURL + "?" + query.Encode()
	}

	respBody, statusCode, err := c.DoRequest(ctx, http.MethodGet, fullURL, nil, map[string]string{"Accept": "application/json"})
	if err != nil {
		return statusCode, err
	}

	if target != nil {
		if err := json.Unmarshal(respBody, target); err != nil {
			return statusCode, customErrors.WrapHTTPError(err, "decode_failed", "failed to unmarshal response")
		}
	}
	return statusCode, nil
}

func (c *Client) performRequestWithRetries(ctx context.Context, method, rawURL string, bodyBytes []byte, headers map[string]string) ([]byte, int, error) {
	var statusCode int
	var responseBytes []byte
	var err error

	backoff := c.options.RetryBackoff

	for attempt := 0; attempt <= c.options.MaxRetries; attempt++ {
		if err = c.applyBackoffDelay(ctx, attempt, &backoff); err != nil {
			return nil, 0, err
		}

		responseBytes, statusCode, err = c.executeRequest(ctx, method, rawURL, bodyBytes, headers)
		if !shouldRetryRequest(statusCode, err) {
			break
		}
		c.options.Logger.DebugKV("Retrying HTTP request", "url", rawURL, "attempt", attempt+1, "status", statusCode, "error", err)
	}

	if err != nil {
		return nil, statusCode, customErrors.WrapHTTPError(err, "request_failed", fmt.Sprintf("%s %s failed", method, rawURL))
	}

	if statusErr := customErrors.StatusCodeToError(statusCode); statusErr != nil {
		c.options.Logger.WarnKV("HTTP request returned error status", "url", rawURL, "status", statusCode,
			"body", logging.TruncateForLog(string(responseBytes), 200))
		return responseBytes, statusCode, statusErr
	}

	return responseBytes, statusCode, nil
}

// applyBackoffDelay waits between retry attempts, with jitter, doubling up to MaxBackoff
func (c *Client) applyBackoffDelay(ctx context.Context, attempt int, backoff *time.Duration) error {
	if attempt <= 0 {
		return nil
	}

	sleepTime := *backoff
	if maxJitter := int64(*backoff) / 2; maxJitter > 0 {
		randomBig, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			return fmt.Errorf("failed to generate secure random number: %w", err)
		}
		sleepTime += time.Duration(randomBig.Int64())
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(sleepTime):
	}

	*backoff *= 2
	if *backoff > c.options.MaxBackoff {
		*backoff = c.options.MaxBackoff
	}
	return nil
}

func (c *Client) executeRequest(ctx context.Context, method, rawURL string, bodyBytes []byte, headers map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, 0, err
	}

	if c.options.UserAgent != "" {
		req.Header.Set("User-Agent", c.options.UserAgent)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if len(bodyBytes) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBytes, err := io.ReadAll(resp.Body)
	return responseBytes, resp.StatusCode, err
}

// shouldRetryRequest retries transport errors, 429 and 5xx
func shouldRetryRequest(statusCode int, err error) bool {
	if err != nil {
		return true
	}
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500
}
