// Package notify delivers text messages to WeCom group-robot webhooks.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatch/internal/bid"
	"github.com/JakeFAU/bidwatch/internal/httpclient"
	"github.com/JakeFAU/bidwatch/internal/metrics"
)

// DefaultBaseURL is the WeCom group-robot send endpoint.
const DefaultBaseURL = "https://qyapi.weixin.qq.com/cgi-bin/webhook/send"

// Synthetic result for failures that never produced an application answer.
const (
	RequestFailedCode = -1
	RequestFailedMsg  = "请求异常"
)

// ErrMissingKey is returned when a webhook is built without its secret.
var ErrMissingKey = errors.New("webhook key is required")

// Doer executes an outbound request under the shared HTTP policy.
type Doer interface {
	Do(ctx context.Context, req httpclient.Request) (*httpclient.Response, error)
}

type textMessage struct {
	MsgType string      `json:"msgtype"`
	Text    textContent `json:"text"`
}

type textContent struct {
	Content string `json:"content"`
}

type sendResult struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Webhook posts text messages to one WeCom robot.
type Webhook struct {
	client  Doer
	url     string
	name    string
	timeout time.Duration
	logger  *zap.Logger
}

// Options configures a Webhook.
type Options struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	Key     string
	// Name labels the webhook in logs, e.g. "primary" or "ops".
	Name    string
	Timeout time.Duration
}

var _ bid.Notifier = (*Webhook)(nil)

// NewWebhook validates opts and builds the notifier.
func NewWebhook(client Doer, opts Options, logger *zap.Logger) (*Webhook, error) {
	key := strings.TrimSpace(opts.Key)
	if key == "" {
		return nil, ErrMissingKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("key", key)
	u.RawQuery = q.Encode()

	name := opts.Name
	if name == "" {
		name = "primary"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Webhook{
		client:  client,
		url:     u.String(),
		name:    name,
		timeout: timeout,
		logger:  logger.With(zap.String("webhook", name)),
	}, nil
}

// Name returns the webhook label.
func (w *Webhook) Name() string {
	return w.name
}

// Send posts text and reports the outcome. It never returns an error; every
// failure is folded into the Delivery.
func (w *Webhook) Send(ctx context.Context, text string) bid.Delivery {
	d := w.send(ctx, text)
	metrics.ObserveNotification(d.OK)
	return d
}

func (w *Webhook) send(ctx context.Context, text string) bid.Delivery {
	body, err := json.Marshal(textMessage{MsgType: "text", Text: textContent{Content: text}})
	if err != nil {
		w.logger.Error("encode message failed", zap.Error(err))
		return bid.Failed(RequestFailedCode, RequestFailedMsg)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		URL:     w.url,
		Header:  header,
		Body:    body,
		Timeout: w.timeout,
	})
	if err != nil {
		w.logger.Error("message send failed", zap.Error(err))
		return bid.Failed(RequestFailedCode, RequestFailedMsg)
	}

	var result sendResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		w.logger.Error("message send returned malformed body", zap.Error(err))
		return bid.Failed(RequestFailedCode, RequestFailedMsg)
	}
	if result.ErrCode != 0 {
		w.logger.Error("message rejected",
			zap.Int("errcode", result.ErrCode),
			zap.String("errmsg", result.ErrMsg),
		)
		return bid.Failed(result.ErrCode, result.ErrMsg)
	}
	return bid.Delivery{OK: true, ErrCode: 0, ErrMsg: result.ErrMsg}
}
