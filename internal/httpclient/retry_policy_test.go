package httpclient

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExponentialRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(3, 10*time.Millisecond, time.Second)
	require.False(t, p.ShouldRetry(nil, 1))
	require.True(t, p.ShouldRetry(errors.New("connection reset"), 1))
	require.True(t, p.ShouldRetry(errors.New("connection reset"), 2))
	require.False(t, p.ShouldRetry(errors.New("connection reset"), 3))
	require.False(t, p.ShouldRetry(context.Canceled, 1))
}

func TestExponentialRetryPolicyStatusesAndMethods(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(5, time.Second, 10*time.Second)
	for _, code := range []int{500, 502, 503, 504} {
		require.True(t, p.RetryableStatus(code), code)
	}
	require.False(t, p.RetryableStatus(http.StatusNotFound))
	require.False(t, p.RetryableStatus(http.StatusNotImplemented))
	require.True(t, p.AllowsMethod(http.MethodGet))
	require.True(t, p.AllowsMethod(http.MethodPost))
	require.False(t, p.AllowsMethod(http.MethodDelete))
}

func TestExponentialRetryPolicyBackoffBounds(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(5, 100*time.Millisecond, 400*time.Millisecond)
	for attempt := 0; attempt < 6; attempt++ {
		d := p.Backoff(attempt)
		require.GreaterOrEqual(t, d, 50*time.Millisecond)
		require.LessOrEqual(t, d, 400*time.Millisecond)
	}
}

func TestNewExponentialRetryPolicyDefaults(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(0, 0, 0)
	require.Equal(t, 1, p.MaxAttempts())
	require.False(t, p.ShouldRetry(errors.New("boom"), 1))
}

func TestRandomUserAgentFromPool(t *testing.T) {
	t.Parallel()

	for i := 0; i < 20; i++ {
		require.Contains(t, userAgentPool, RandomUserAgent())
	}
}

func TestLimiterDisabledDoesNotBlock(t *testing.T) {
	t.Parallel()

	l := NewLimiter(0, 0)
	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://www.tower.com.cn/api"))
	}
	require.Less(t, time.Since(start), time.Second)
}

func TestLimiterSpacesRequestsPerHost(t *testing.T) {
	t.Parallel()

	l := NewLimiter(20, 1)
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "https://a.example/x"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://a.example/y"))
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	start = time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example/x"))
	require.Less(t, time.Since(start), 30*time.Millisecond)
}

func TestLimiterHonorsContext(t *testing.T) {
	t.Parallel()

	l := NewLimiter(0.01, 1)
	require.NoError(t, l.Wait(context.Background(), "https://c.example"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, l.Wait(ctx, "https://c.example"))
}
