package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatch/internal/bid"
	"github.com/JakeFAU/bidwatch/internal/httpclient"
	"github.com/JakeFAU/bidwatch/internal/notify"
)

func newClient(t *testing.T, attempts int) *httpclient.Client {
	t.Helper()
	c, err := httpclient.New(httpclient.Config{
		MaxAttempts: attempts,
		BackoffBase: time.Millisecond,
		BackoffMax:  time.Millisecond,
		Timeout:     5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestWebhookSendSuccess(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		gotKey  string
		gotType string
		gotText string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			MsgType string `json:"msgtype"`
			Text    struct {
				Content string `json:"content"`
			} `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		gotKey = r.URL.Query().Get("key")
		gotType = payload.MsgType
		gotText = payload.Text.Content
		mu.Unlock()
		_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()

	hook, err := notify.NewWebhook(newClient(t, 1), notify.Options{BaseURL: srv.URL + "/send", Key: "abc"}, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, "primary", hook.Name())

	d := hook.Send(context.Background(), "【标题】XX培训项目")
	require.Equal(t, bid.Delivery{OK: true, ErrCode: 0, ErrMsg: "ok"}, d)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "abc", gotKey)
	require.Equal(t, "text", gotType)
	require.Equal(t, "【标题】XX培训项目", gotText)
}

func TestWebhookServerErrorEveryAttempt(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	hook, err := notify.NewWebhook(newClient(t, 3), notify.Options{BaseURL: srv.URL, Key: "abc"}, zap.NewNop())
	require.NoError(t, err)

	d := hook.Send(context.Background(), "hello")
	require.False(t, d.OK)
	require.Equal(t, notify.RequestFailedCode, d.ErrCode)
	require.Equal(t, notify.RequestFailedMsg, d.ErrMsg)
	require.EqualValues(t, 3, calls.Load())
}

func TestWebhookApplicationError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"errcode":93000,"errmsg":"invalid webhook url"}`))
	}))
	defer srv.Close()

	hook, err := notify.NewWebhook(newClient(t, 1), notify.Options{BaseURL: srv.URL, Key: "abc"}, zap.NewNop())
	require.NoError(t, err)

	d := hook.Send(context.Background(), "hello")
	require.Equal(t, bid.Delivery{OK: false, ErrCode: 93000, ErrMsg: "invalid webhook url"}, d)
}

func TestWebhookMalformedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	}))
	defer srv.Close()

	hook, err := notify.NewWebhook(newClient(t, 1), notify.Options{BaseURL: srv.URL, Key: "abc"}, zap.NewNop())
	require.NoError(t, err)
	require.False(t, hook.Send(context.Background(), "hello").OK)
}

func TestNewWebhookRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := notify.NewWebhook(newClient(t, 1), notify.Options{Key: "  "}, nil)
	require.ErrorIs(t, err, notify.ErrMissingKey)
}

func TestFormat(t *testing.T) {
	t.Parallel()

	require.Empty(t, notify.Format(nil))

	got := notify.Format([]bid.Record{
		{Title: "XX培训项目", DocType: "采购公告", Link: "https://a/1"},
		{Title: "邮政会务", Link: "https://b/2"},
	})
	require.Equal(t,
		"【标题】XX培训项目\n【类型】采购公告\n【链接】https://a/1\n\n【标题】邮政会务\n【链接】https://b/2",
		got)
}

func TestLifecycleMessages(t *testing.T) {
	t.Parallel()

	require.Equal(t, "重启，必胜！\n 2025-06-03 10:00:00", notify.Startup("2025-06-03 10:00:00"))
	require.Equal(t, "归零，更新！\n2025-06-03 15:00:00", notify.Shutdown("2025-06-03 15:00:00"))
	require.Equal(t, "全局异常: boom", notify.Failure(errors.New("boom")))
}

type recorder struct {
	mu    sync.Mutex
	texts []string
	ok    bool
}

func (r *recorder) Send(_ context.Context, text string) bid.Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	if !r.ok {
		return bid.Failed(notify.RequestFailedCode, notify.RequestFailedMsg)
	}
	return bid.Delivery{OK: true}
}

func TestMirrorReportsPrimaryOutcome(t *testing.T) {
	t.Parallel()

	primary := &recorder{ok: true}
	secondary := &recorder{ok: false}
	n := notify.NewMirror(primary, secondary, zap.NewNop())

	d := n.Send(context.Background(), "msg")
	require.True(t, d.OK)
	require.Equal(t, []string{"msg"}, primary.texts)
	require.Equal(t, []string{"msg"}, secondary.texts)

	require.Same(t, primary, notify.NewMirror(primary, nil, nil))
}
