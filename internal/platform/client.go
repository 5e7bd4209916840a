package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const maxErrorBody = 512

type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// StatusError is a non-2xx answer from a platform API.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d - %s", e.Op, e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed when sent again.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client sends platform API requests. GET and HEAD requests get bounded
// exponential retry on transport errors, 429 and 5xx; other 4xx answers fail
// immediately. Every other method is sent once, since a repeated publish or
// upload can duplicate content on the platform.
type Client struct {
	http   *http.Client
	retry  RetryConfig
	logger *slog.Logger
}

func NewClient(httpClient *http.Client, retry RetryConfig, logger *slog.Logger) *Client {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &Client{http: httpClient, retry: retry, logger: logger}
}

// Do sends the request produced by newRequest. newRequest is called once per
// attempt so request bodies can be replayed.
func (c *Client) Do(ctx context.Context, op string, newRequest func(ctx context.Context) (*http.Request, error)) (*Response, error) {
	attempt := 0
	operation := func() (*Response, error) {
		attempt++
		req, err := newRequest(ctx)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("%s: create request: %w", op, err))
		}

		retryable := safeMethod(req.Method)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(fmt.Errorf("%s: %w", op, ctx.Err()))
			}
			err = fmt.Errorf("%s: execute request: %w", op, err)
			if !retryable {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: read response: %w", op, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := &StatusError{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
			if !retryable || !statusErr.Retryable() {
				return nil, backoff.Permanent(statusErr)
			}
			return nil, statusErr
		}

		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("request failed, retrying",
			"op", op,
			"attempt", attempt,
			"backoff", wait,
			"error", err,
		)
	}

	resp, err := backoff.RetryNotifyWithData(operation, c.backOff(ctx), notify)
	if err != nil {
		var statusErr *StatusError
		if attempt > 1 && !errors.As(err, &statusErr) {
			return nil, fmt.Errorf("after %d attempts: %w", attempt, err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.retry.InitialBackoff > 0 {
		b.InitialInterval = c.retry.InitialBackoff
	}
	if c.retry.MaxBackoff > 0 {
		b.MaxInterval = c.retry.MaxBackoff
	}
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.retry.MaxAttempts-1)), ctx)
}

func safeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
