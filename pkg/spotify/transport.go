package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	neturl "net/url"
	"time"
)

// maxErrorBody bounds how much of a failed response is kept on *Error.
const maxErrorBody = 512

// call makes an HTTP request to a Spotify endpoint with retry logic.
//
// It handles:
// - Rate limiting before every attempt
// - JSON request bodies and response decoding
// - Retry with exponential backoff on network errors and 5xx responses
// - Context cancellation
//
// Non-2xx responses that are not retried are returned as *Error.
func (c *Client) call(ctx context.Context, method, url string, body, result interface{}) error {
	return c.do(ctx, c.maxRetries, method, url, body, result)
}

// callOnce makes a single attempt. Polled endpoints use it so that the
// polling loop sees every failure and applies its own backoff.
func (c *Client) callOnce(ctx context.Context, method, url string, body, result interface{}) error {
	return c.do(ctx, 1, method, url, body, result)
}

// do runs up to attempts tries of one request.
func (c *Client) do(ctx context.Context, attempts int, method, url string, body, result interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var lastErr error
	backoff := c.retryBackoff

	for i := 0; i < attempts; i++ {
		c.logDebugf("spotify: %s %s (attempt %d/%d)", method, url, i+1, attempts)

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() == nil && shouldRetryNetworkError(err) && i < attempts-1 {
				c.logDebugf("spotify: network error, retrying: %v", err)
				if !sleep(ctx, backoff) {
					return ctx.Err()
				}
				backoff = nextBackoff(backoff)
				continue
			}
			return fmt.Errorf("http request failed: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := newError(resp.StatusCode, respBody)
			if apiErr.Temporary() && i < attempts-1 {
				c.logDebugf("spotify: temporary error, retrying: %v", apiErr)
				lastErr = apiErr
				if !sleep(ctx, backoff) {
					return ctx.Err()
				}
				backoff = nextBackoff(backoff)
				continue
			}
			return apiErr
		}

		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// newError builds an *Error from a failed response, truncating the body.
func newError(status int, body []byte) *Error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &Error{Status: status, Body: string(body)}
}

// shouldRetryNetworkError checks if a network error is retryable.
// Failures raised before the request left the client (such as the token
// source) are not.
func shouldRetryNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// sleep waits for the specified duration or until context is cancelled.
// Returns true if sleep completed, false if context was cancelled.
func sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(duration):
		return true
	}
}

// nextBackoff doubles the backoff, capped at 30 seconds.
func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > 30*time.Second {
		return 30 * time.Second
	}
	return next
}
