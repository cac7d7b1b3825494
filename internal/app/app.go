// Package app builds the long-lived services from configuration and runs them.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatch/internal/api"
	"github.com/JakeFAU/bidwatch/internal/bid"
	"github.com/JakeFAU/bidwatch/internal/clock/system"
	"github.com/JakeFAU/bidwatch/internal/config"
	"github.com/JakeFAU/bidwatch/internal/dedupe"
	"github.com/JakeFAU/bidwatch/internal/httpclient"
	"github.com/JakeFAU/bidwatch/internal/id/uuid"
	"github.com/JakeFAU/bidwatch/internal/notify"
	"github.com/JakeFAU/bidwatch/internal/scheduler"
	"github.com/JakeFAU/bidwatch/internal/source"
)

const ipProbeTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	clock  *system.Clock
	sched  *scheduler.Scheduler
	probe  *httpclient.Client
}

// New wires sources, notifiers and the scheduler. It fails fast on anything
// that would make the run useless, such as a missing webhook key.
func New(cfg config.Config, keywords bid.KeywordSet, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clock, err := system.New(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	mode, err := scheduler.ParseMode(cfg.Scheduler.Mode)
	if err != nil {
		return nil, err
	}

	targets, err := buildTargets(cfg, clock.Location(), logger)
	if err != nil {
		return nil, err
	}
	primary, ops, err := buildNotifiers(cfg, logger)
	if err != nil {
		return nil, err
	}

	probe, err := newClient(cfg.HTTP, 1, ipProbeTimeout, logger)
	if err != nil {
		return nil, err
	}

	sched, err := scheduler.New(scheduler.Config{
		Mode:         mode,
		Duration:     cfg.Scheduler.Duration,
		Interval:     cfg.Scheduler.Interval,
		KeywordPause: cfg.Scheduler.KeywordPause,
	}, scheduler.Deps{
		Keywords: keywords,
		Targets:  targets,
		Store:    dedupe.NewStore(cfg.Scheduler.HighWater, cfg.Scheduler.LowWater),
		Notifier: primary,
		Ops:      ops,
		Clock:    clock,
		IDs:      uuid.New(),
		Logger:   logger.Named("scheduler"),
	})
	if err != nil {
		return nil, err
	}

	logger.Info("application configured",
		zap.String("mode", string(mode)),
		zap.String("timezone", clock.Location().String()),
		zap.Int("sources", len(targets)),
		zap.Int("keywords", len(keywords.Queries())),
		zap.Int("exclusions", len(keywords.Exclude)),
		zap.Bool("ops_webhook", cfg.Notify.TestKey != ""),
	)
	return &App{cfg: cfg, logger: logger, clock: clock, sched: sched, probe: probe}, nil
}

func newClient(h config.HTTPConfig, attempts int, timeout time.Duration, logger *zap.Logger) (*httpclient.Client, error) {
	initial, maxDelay := h.Backoff()
	return httpclient.New(httpclient.Config{
		Timeout:         timeout,
		MaxAttempts:     attempts,
		BackoffBase:     initial,
		BackoffMax:      maxDelay,
		RotateUserAgent: h.RotateUserAgent,
		RatePerSecond:   h.RatePerSecond,
		RateBurst:       h.RateBurst,
	}, logger.Named("http"))
}

type sourceFactory func(source.Doer, source.Options, *zap.Logger) bid.Source

func buildTargets(cfg config.Config, loc *time.Location, logger *zap.Logger) ([]scheduler.Target, error) {
	entries := []struct {
		name    string
		cfg     config.SourceConfig
		factory sourceFactory
	}{
		{config.SourceTelecom, cfg.Sources.Telecom, func(c source.Doer, o source.Options, l *zap.Logger) bid.Source {
			return source.NewTelecom(c, o, l)
		}},
		{config.SourceTower, cfg.Sources.Tower, func(c source.Doer, o source.Options, l *zap.Logger) bid.Source {
			return source.NewTower(c, o, l)
		}},
		{config.SourceChinaPost, cfg.Sources.ChinaPost, func(c source.Doer, o source.Options, l *zap.Logger) bid.Source {
			return source.NewChinaPost(c, o, l)
		}},
	}

	var targets []scheduler.Target
	for _, e := range entries {
		if !e.cfg.Enabled {
			continue
		}
		policy, err := source.ParseScanPolicy(e.cfg.ScanPolicy)
		if err != nil {
			return nil, fmt.Errorf("sources.%s: %w", e.name, err)
		}
		timeout := time.Duration(e.cfg.TimeoutSeconds) * time.Second
		// Each portal gets its own client so session cookies stay separate.
		client, err := newClient(cfg.HTTP, e.cfg.MaxAttempts, timeout, logger)
		if err != nil {
			return nil, err
		}
		src := e.factory(client, source.Options{
			HomeURL:  e.cfg.HomeURL,
			APIURL:   e.cfg.APIURL,
			LinkBase: e.cfg.LinkBase,
			PageSize: e.cfg.PageSize,
			Policy:   policy,
			Location: loc,
			Timeout:  timeout,
		}, logger.Named("source"))
		targets = append(targets, scheduler.Target{Source: src, Lookback: e.cfg.Lookback})
	}
	if len(targets) == 0 {
		return nil, errors.New("no sources enabled")
	}
	return targets, nil
}

// buildNotifiers returns the bid notifier and the ops notifier. ops is nil
// when no test key is configured, so lifecycle messages go to the primary.
func buildNotifiers(cfg config.Config, logger *zap.Logger) (bid.Notifier, bid.Notifier, error) {
	timeout := time.Duration(cfg.Notify.TimeoutSeconds) * time.Second
	client, err := newClient(cfg.HTTP, cfg.Notify.MaxAttempts, timeout, logger)
	if err != nil {
		return nil, nil, err
	}
	log := logger.Named("notify")

	primary, err := notify.NewWebhook(client, notify.Options{
		BaseURL: cfg.Notify.BaseURL,
		Key:     cfg.Notify.Key,
		Name:    "primary",
		Timeout: timeout,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("primary webhook: %w", err)
	}
	if strings.TrimSpace(cfg.Notify.TestKey) == "" {
		return primary, nil, nil
	}

	ops, err := notify.NewWebhook(client, notify.Options{
		BaseURL: cfg.Notify.BaseURL,
		Key:     cfg.Notify.TestKey,
		Name:    "ops",
		Timeout: timeout,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("ops webhook: %w", err)
	}
	if cfg.Notify.Mirror {
		return notify.NewMirror(primary, ops, log), ops, nil
	}
	return primary, ops, nil
}

// Scheduler exposes the configured scheduler.
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.sched
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run probes the egress address, starts the status server when configured
// and blocks in the scheduler until it finishes or ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	a.probeEgress(ctx)

	var srv *http.Server
	if a.cfg.Metrics.Addr != "" {
		srv = &http.Server{
			Addr:              a.cfg.Metrics.Addr,
			Handler:           api.NewServer(a.sched, a.logger.Named("api")).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("status server started", zap.String("addr", a.cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("status server error", zap.Error(err))
			}
		}()
	}

	runErr := a.sched.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("status server shutdown error", zap.Error(err))
		}
	}
	return runErr
}

// Search runs one ad-hoc query across the enabled sources without notifying.
func (a *App) Search(ctx context.Context, keyword string) ([]bid.Record, error) {
	return a.sched.Search(ctx, keyword)
}

// probeEgress logs the outbound IP; portals block by address, so it helps
// when diagnosing empty results. Failures are logged and ignored.
func (a *App) probeEgress(ctx context.Context) {
	if a.cfg.HTTP.IPProbeURL == "" {
		return
	}
	resp, err := a.probe.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: a.cfg.HTTP.IPProbeURL})
	if err != nil {
		a.logger.Warn("egress ip probe failed", zap.Error(err))
		return
	}
	a.logger.Info("egress ip", zap.String("ip", strings.TrimSpace(string(resp.Body))))
}

// Close flushes the logger.
func (a *App) Close() {
	_ = a.logger.Sync()
}
