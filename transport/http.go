// Package transport is the default HTTP collaborator used by the convertapi client
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/sunbankio/convertapi-go/auth"
	"github.com/sunbankio/convertapi-go/config"
	"github.com/sunbankio/convertapi-go/logging"
)

// Response is a raw service reply. Callers must close Body.
type Response struct {
	StatusCode int
	Reason     string
	Body       io.ReadCloser
}

// IsSuccess reports a 2xx status
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ReadAll drains and closes the body
func (r *Response) ReadAll() ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

// HTTP implements the client's transport on top of net/http
type HTTP struct {
	client  *http.Client
	limiter *rate.Limiter
	breaker *CircuitBreaker
	retry   RetryPolicy
	logger  *logging.Logger
}

// Option configures an HTTP transport
type Option func(*HTTP)

// WithRateLimit throttles outgoing requests to rps per second. Zero disables it.
func WithRateLimit(rps float64) Option {
	return func(t *HTTP) {
		if rps > 0 {
			t.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRetry retries GET and DELETE requests that fail with a network error or 5xx
func WithRetry(policy RetryPolicy) Option {
	return func(t *HTTP) {
		t.retry = policy
	}
}

// WithCircuitBreaker guards every request with cb
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(t *HTTP) {
		t.breaker = cb
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger *logging.Logger) Option {
	return func(t *HTTP) {
		t.logger = logger
	}
}

// New wraps an existing *http.Client
func New(client *http.Client, opts ...Option) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	t := &HTTP{client: client, logger: logging.NewDiscardLogger()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewFromConfig builds a transport with the shared pooled client, the configured
// throttle, retries and circuit breaker
func NewFromConfig(cfg *config.Config, logger *logging.Logger) *HTTP {
	opts := []Option{
		WithRateLimit(cfg.HTTPClient.RequestsPerSecond),
		WithRetry(DefaultRetryPolicy(cfg.HTTPClient.MaxRetries)),
	}
	if cfg.HTTPClient.BreakerFailures > 0 {
		opts = append(opts, WithCircuitBreaker(NewCircuitBreaker(cfg.HTTPClient.BreakerFailures, cfg.BreakerReset(), logger)))
	}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	return New(cfg.SharedHTTPClient(), opts...)
}

// Post sends body to uri with the given content type, bearer token and timeout
func (t *HTTP) Post(ctx context.Context, uri string, timeout time.Duration, body io.Reader, contentType, token string) (*Response, error) {
	return t.do(ctx, http.MethodPost, uri, timeout, body, contentType, token)
}

// Get fetches uri. An empty token sends no Authorization header.
func (t *HTTP) Get(ctx context.Context, uri string, timeout time.Duration, token string) (*Response, error) {
	return t.do(ctx, http.MethodGet, uri, timeout, nil, "", token)
}

// Delete removes the resource at uri. File URLs carry their own authorization.
func (t *HTTP) Delete(ctx context.Context, uri string) (*Response, error) {
	return t.do(ctx, http.MethodDelete, uri, 0, nil, "", "")
}

// do sends the request, retrying idempotent ones. A 5xx reply on the last
// attempt is returned as is so callers can report it.
func (t *HTTP) do(ctx context.Context, method, uri string, timeout time.Duration, body io.Reader, contentType, token string) (*Response, error) {
	retries := 0
	if body == nil && (method == http.MethodGet || method == http.MethodDelete) {
		retries = t.retry.MaxRetries
	}

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := t.retry.delay(attempt)
			t.logger.DebugLog("Retrying %s %s after %v (attempt %d/%d)", method, redactQuery(uri), delay, attempt, retries)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := t.attempt(ctx, method, uri, timeout, body, contentType, token)
		if attempt >= retries || !retryable(ctx, resp, err) {
			return resp, err
		}
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}
}

func retryable(ctx context.Context, resp *Response, err error) bool {
	if ctx.Err() != nil || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	return err != nil || resp.StatusCode >= 500
}

func (t *HTTP) attempt(ctx context.Context, method, uri string, timeout time.Duration, body io.Reader, contentType, token string) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}
	if t.breaker != nil {
		if err := t.breaker.allow(); err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, redactQuery(uri), err)
		}
	}

	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, body)
	if err != nil {
		cancel()
		t.settle(ctx, 0, nil)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		auth.BearerToken(token).SetAuthHeader(req)
	}

	requestID := uuid.NewString()
	log := t.logger.WithField("request_id", requestID)
	log.Debugf("%s %s", method, redactQuery(uri))

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.settle(ctx, 0, err)
		cancel()
		log.WithError(err).Debugf("%s %s failed", method, redactQuery(uri))
		return nil, fmt.Errorf("request failed: %w", err)
	}
	log.Debugf("%s %s -> %d in %s", method, redactQuery(uri), resp.StatusCode, time.Since(start).Round(time.Millisecond))
	t.settle(ctx, resp.StatusCode, nil)

	return &Response{
		StatusCode: resp.StatusCode,
		Reason:     reasonPhrase(resp),
		Body:       &cancelOnClose{ReadCloser: resp.Body, cancel: cancel},
	}, nil
}

// settle reports the outcome of an attempt to the breaker. Caller cancellation
// and request construction errors do not count against the service.
func (t *HTTP) settle(ctx context.Context, status int, err error) {
	if t.breaker == nil {
		return
	}
	switch {
	case err == nil && status == 0, ctx.Err() != nil && errors.Is(err, context.Canceled):
		t.breaker.release()
	case err != nil:
		t.breaker.onFailure(err.Error())
	case status >= 500:
		t.breaker.onFailure(http.StatusText(status))
	default:
		t.breaker.onSuccess()
	}
}

// reasonPhrase strips the numeric code from "422 Unprocessable Entity"
func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}

func redactQuery(uri string) string {
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		return uri[:i] + "?…"
	}
	return uri
}

// cancelOnClose keeps the per-request deadline alive until the body is consumed
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
