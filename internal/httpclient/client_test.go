package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	c.pause = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestDoRetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, Config{MaxAttempts: 5})
	resp, err := c.Do(context.Background(), Request{Method: http.MethodPost, URL: srv.URL, Body: []byte(`{}`)})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"ok":true}`, string(resp.Body))
	require.EqualValues(t, 3, calls.Load())
}

func TestDoExhaustsRetryBudget(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("busy"))
	}))
	defer srv.Close()

	c := newTestClient(t, Config{MaxAttempts: 3})
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.Error(t, err)
	require.True(t, IsStatus(err, http.StatusServiceUnavailable))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, "busy", statusErr.Body)
	require.EqualValues(t, 3, calls.Load())
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, Config{MaxAttempts: 5})
	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, URL: srv.URL})
	require.True(t, IsStatus(err, http.StatusForbidden))
	require.EqualValues(t, 1, calls.Load())
}

func TestDoDoesNotRetryUnsafeMethods(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, Config{MaxAttempts: 5})
	_, err := c.Do(context.Background(), Request{Method: http.MethodDelete, URL: srv.URL})
	require.True(t, IsStatus(err, http.StatusInternalServerError))
	require.EqualValues(t, 1, calls.Load())
}

func TestDoRetriesConnectionFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(t, Config{MaxAttempts: 2})
	var pauses int
	c.pause = func(context.Context, time.Duration) error {
		pauses++
		return nil
	}
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: url})
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 2 attempt(s)")
	require.Equal(t, 1, pauses)
}

func TestDoAppliesPerRequestTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, Config{MaxAttempts: 1, Timeout: time.Minute})
	start := time.Now()
	_, err := c.Do(context.Background(), Request{URL: srv.URL, Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestDoSendsHeadersAndKeepsCookies(t *testing.T) {
	t.Parallel()

	var sawCookie, sawHeaders atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
	})
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err == nil && c.Value == "abc" {
			sawCookie.Store(true)
		}
		if r.Header.Get("Content-Type") == "application/json;charset=UTF-8" && r.Header.Get("User-Agent") != "" {
			sawHeaders.Store(true)
		}
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, Config{MaxAttempts: 1, RotateUserAgent: true})
	_, err := c.Do(context.Background(), Request{URL: srv.URL + "/"})
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Content-Type", "application/json;charset=UTF-8")
	resp, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		URL:    srv.URL + "/api",
		Header: header,
		Body:   []byte(`{"title":"培训"}`),
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"title":"培训"}`, string(resp.Body))
	require.True(t, sawCookie.Load())
	require.True(t, sawHeaders.Load())
}

func TestDoStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newTestClient(t, Config{MaxAttempts: 5})
	_, err := c.Do(ctx, Request{URL: srv.URL})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRedactMasksWebhookKey(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=REDACTED",
		Redact("https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=s3cr3t"))
	require.Equal(t, "https://example.com/search?q=a", Redact("https://example.com/search?q=a"))
	require.Equal(t, "::bad", Redact("::bad"))
}

func TestStatusErrorOmitsSecret(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, Config{MaxAttempts: 1})
	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, URL: srv.URL + "/send?key=s3cr3t"})
	require.Error(t, err)
	require.NotContains(t, err.Error(), "s3cr3t")
	require.True(t, IsStatus(err, http.StatusForbidden))
}
