package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatch/internal/bid"
	"github.com/JakeFAU/bidwatch/internal/httpclient"
)

// Doer executes an outbound request under the shared HTTP policy.
type Doer interface {
	Do(ctx context.Context, req httpclient.Request) (*httpclient.Response, error)
}

// Options configures one portal adapter.
type Options struct {
	// HomeURL is fetched before searching to establish session cookies, and is
	// the base for detail links unless LinkBase is set.
	HomeURL  string
	APIURL   string
	LinkBase string
	PageSize int
	Policy   ScanPolicy
	// Location interprets the portal's naive timestamps.
	Location         *time.Location
	Timeout          time.Duration
	PreflightTimeout time.Duration
	SkipPreflight    bool
}

func (o Options) withDefaults(def Options) Options {
	if o.HomeURL == "" {
		o.HomeURL = def.HomeURL
	}
	if o.APIURL == "" {
		o.APIURL = def.APIURL
	}
	if o.LinkBase == "" {
		o.LinkBase = def.LinkBase
	}
	if o.PageSize <= 0 {
		o.PageSize = def.PageSize
	}
	if o.Policy == "" {
		o.Policy = EarlyBreakOnTimestamp
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.PreflightTimeout <= 0 {
		o.PreflightTimeout = 10 * time.Second
	}
	return o
}

// portal holds the plumbing shared by every adapter.
type portal struct {
	name   string
	client Doer
	opts   Options
	logger *zap.Logger
}

func newPortal(name string, client Doer, opts Options, logger *zap.Logger) portal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return portal{name: name, client: client, opts: opts, logger: logger.With(zap.String("source", name))}
}

// Name implements bid.Source.
func (p portal) Name() string {
	return p.name
}

func (p portal) fail(keyword string, err error) error {
	return &bid.SourceError{Source: p.name, Keyword: keyword, Err: err}
}

func (p portal) checkKeyword(keyword string) error {
	if strings.TrimSpace(keyword) == "" {
		return p.fail(keyword, bid.ErrEmptyKeyword)
	}
	return nil
}

// preflight loads the landing page so the backend hands out its session cookies.
func (p portal) preflight(ctx context.Context, keyword string) error {
	if p.opts.SkipPreflight || p.opts.HomeURL == "" {
		return nil
	}
	_, err := p.client.Do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		URL:     p.opts.HomeURL,
		Timeout: p.opts.PreflightTimeout,
	})
	if err != nil {
		p.logger.Error("landing page request failed", zap.String("keyword", keyword), zap.Error(err))
		return p.fail(keyword, fmt.Errorf("landing page: %w", err))
	}
	return nil
}

// post sends payload (nil for an empty body) and decodes the JSON answer into out.
func (p portal) post(ctx context.Context, keyword, url string, payload any, out any) error {
	header := http.Header{}
	header.Set("Content-Type", "application/json;charset=UTF-8")
	header.Set("Accept", "application/json, text/plain, */*")

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return p.fail(keyword, fmt.Errorf("encode payload: %w", err))
		}
	}

	resp, err := p.client.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		URL:     url,
		Header:  header,
		Body:    body,
		Timeout: p.opts.Timeout,
	})
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			p.logger.Error("api request failed",
				zap.String("keyword", keyword),
				zap.Int("status", statusErr.StatusCode),
				zap.String("body", statusErr.Body),
			)
		} else {
			p.logger.Error("api request failed", zap.String("keyword", keyword), zap.Error(err))
		}
		return p.fail(keyword, err)
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		p.logger.Error("api response malformed", zap.String("keyword", keyword), zap.Error(err))
		return p.fail(keyword, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// parseTime reads a naive portal timestamp in the configured location.
func (p portal) parseTime(keyword, layout, raw string) (time.Time, error) {
	t, err := time.ParseInLocation(layout, strings.TrimSpace(raw), p.opts.Location)
	if err != nil {
		return time.Time{}, p.fail(keyword, fmt.Errorf("parse timestamp %q: %w", raw, err))
	}
	return t, nil
}

// keep runs the scan policy over one result page and logs where it stopped.
func (p portal) keep(keyword, category, layout string, entries []pageEntry, admit admitFunc) ([]bid.Record, error) {
	parse := func(raw string) (time.Time, error) {
		return p.parseTime(keyword, layout, raw)
	}
	res, err := scan(p.opts.Policy, entries, parse, admit)
	if err != nil {
		p.logger.Error("api response malformed",
			zap.String("keyword", keyword),
			zap.String("category", category),
			zap.Error(err),
		)
		return nil, err
	}
	for _, e := range res.incomplete {
		p.logger.Debug("incomplete entry skipped",
			zap.String("keyword", keyword),
			zap.String("category", category),
			zap.String("title", e.record.Title),
			zap.String("ref", e.ref),
		)
	}
	p.logger.Debug("page scanned",
		zap.String("keyword", keyword),
		zap.String("category", category),
		zap.Int("returned", len(entries)),
		zap.Int("kept", len(res.kept)),
		zap.Int("incomplete", len(res.incomplete)),
		zap.Bool("early_break", res.broke),
	)
	return res.kept, nil
}
