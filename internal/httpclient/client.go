// Package httpclient implements the outbound HTTP policy shared by the portal
// adapters and the webhook notifier: pooled connections, per-request timeouts,
// bounded retry with exponential backoff, a session cookie jar, optional
// user-agent rotation and per-host rate limiting.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatch/internal/metrics"
)

const maxBodyBytes = 8 << 20

// StatusError is returned when the server answered with a non-success status
// that either is not retryable or exhausted the retry budget.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, truncate(e.Body, 256))
}

// Config controls Client behavior.
type Config struct {
	Timeout         time.Duration
	MaxAttempts     int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	RotateUserAgent bool
	// RatePerSecond limits requests per host; zero disables limiting.
	RatePerSecond float64
	RateBurst     int
}

// Request is one outbound call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
	// Timeout overrides Config.Timeout for this request.
	Timeout time.Duration
}

// Response is a fully-read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client wraps an http.Client with the retry policy.
type Client struct {
	http    *http.Client
	policy  *ExponentialRetryPolicy
	limiter *Limiter
	cfg     Config
	logger  *zap.Logger
	pause   func(ctx context.Context, d time.Duration) error
}

// New builds a Client with its own cookie jar, so each portal keeps its session.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Client{
		http: &http.Client{
			Transport: newHTTPTransport(),
			Jar:       jar,
		},
		policy:  NewExponentialRetryPolicy(cfg.MaxAttempts, cfg.BackoffBase, cfg.BackoffMax),
		limiter: NewLimiter(cfg.RatePerSecond, cfg.RateBurst),
		cfg:     cfg,
		logger:  logger,
		pause:   sleepContext,
	}, nil
}

// Do executes req, retrying transient failures. A non-2xx final status is
// returned as *StatusError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	retryable := c.policy.AllowsMethod(req.Method)

	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx, req.URL); err != nil {
			return nil, err
		}
		resp, err := c.once(ctx, req)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", req.Method, Redact(req.URL), ctx.Err())
		}

		var retry bool
		switch {
		case err != nil:
			retry = retryable && c.policy.ShouldRetry(err, attempt)
		case c.policy.RetryableStatus(resp.StatusCode):
			retry = retryable && attempt < c.policy.MaxAttempts()
		default:
			return finish(req, resp)
		}

		if !retry {
			if err != nil {
				return nil, fmt.Errorf("%s %s after %d attempt(s): %w", req.Method, Redact(req.URL), attempt, err)
			}
			return finish(req, resp)
		}

		delay := c.policy.Backoff(attempt - 1)
		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("url", Redact(req.URL)),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		} else {
			fields = append(fields, zap.Int("status", resp.StatusCode))
		}
		c.logger.Warn("retrying request", fields...)
		metrics.ObserveRetry(req.URL)

		if err := c.pause(ctx, delay); err != nil {
			return nil, fmt.Errorf("%s %s: %w", req.Method, Redact(req.URL), err)
		}
	}
}

func (c *Client) once(ctx context.Context, req Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(reqCtx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.userAgent())
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = Redact(urlErr.URL)
		}
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       data,
	}, nil
}

func (c *Client) userAgent() string {
	if c.cfg.RotateUserAgent {
		return RandomUserAgent()
	}
	return DefaultUserAgent
}

func finish(req Request, resp *Response) (*Response, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     req.Method,
			URL:        Redact(req.URL),
			StatusCode: resp.StatusCode,
			Body:       string(resp.Body),
		}
	}
	return resp, nil
}

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// secretParams are query parameters whose values never reach logs or errors.
var secretParams = []string{"key", "access_token"}

// Redact masks credential query parameters in raw.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	q := u.Query()
	changed := false
	for _, name := range secretParams {
		if q.Has(name) {
			q.Set(name, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
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
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
