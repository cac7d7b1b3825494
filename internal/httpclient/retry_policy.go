package httpclient

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net/http"
	"time"
)

// DefaultRetryStatuses are the transient server statuses worth another attempt.
var DefaultRetryStatuses = []int{
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// ExponentialRetryPolicy decides whether a request is retried and how long to wait.
// maxAttempts counts the first request.
type ExponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	statuses    map[int]struct{}
	methods     map[string]struct{}
}

// NewExponentialRetryPolicy builds a policy retrying GET and POST on
// connection failures and DefaultRetryStatuses.
func NewExponentialRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) *ExponentialRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	p := &ExponentialRetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		statuses:    make(map[int]struct{}, len(DefaultRetryStatuses)),
		methods: map[string]struct{}{
			http.MethodGet:  {},
			http.MethodHead: {},
			// The portals' search endpoints are queries sent as POST.
			http.MethodPost: {},
		},
	}
	for _, code := range DefaultRetryStatuses {
		p.statuses[code] = struct{}{}
	}
	return p
}

// MaxAttempts reports the total attempt budget.
func (p *ExponentialRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// AllowsMethod reports whether requests with method may be retried at all.
func (p *ExponentialRetryPolicy) AllowsMethod(method string) bool {
	_, ok := p.methods[method]
	return ok
}

// RetryableStatus reports whether the response status is transient.
func (p *ExponentialRetryPolicy) RetryableStatus(code int) bool {
	_, ok := p.statuses[code]
	return ok
}

// ShouldRetry decides whether a transport error is retryable after attempt attempts.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// Backoff returns the wait duration before the next attempt.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := p.randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func (p *ExponentialRetryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
