// Package scheduler drives polling cycles: every keyword is queried against
// every source, candidates pass the dedup store and exclusion filter, and
// each keyword's new records are sent as one message.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatch/internal/bid"
	"github.com/JakeFAU/bidwatch/internal/dedupe"
	"github.com/JakeFAU/bidwatch/internal/filter"
	"github.com/JakeFAU/bidwatch/internal/metrics"
	"github.com/JakeFAU/bidwatch/internal/notify"
)

// TimestampLayout formats lifecycle message timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Cycle statuses recorded in metrics.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusCanceled = "canceled"
)

// Target is one source together with how far back it looks.
type Target struct {
	Source   bid.Source
	Lookback time.Duration
}

// Config controls the run loop.
type Config struct {
	Mode Mode
	// Duration bounds ModeDuration runs.
	Duration time.Duration
	// Interval is the sleep between cycles.
	Interval time.Duration
	// KeywordPause is the sleep after each keyword.
	KeywordPause time.Duration
	// ShutdownTimeout bounds the final notification once the run context is done.
	ShutdownTimeout time.Duration
}

// Deps are the collaborators a Scheduler drives.
type Deps struct {
	Keywords bid.KeywordSet
	Targets  []Target
	Store    *dedupe.Store
	Notifier bid.Notifier
	// Ops receives lifecycle and failure messages; Notifier is used when nil.
	Ops    bid.Notifier
	Clock  bid.Clock
	IDs    bid.IDGenerator
	Logger *zap.Logger
}

// Report summarizes one cycle.
type Report struct {
	ID             string        `json:"id"`
	Started        time.Time     `json:"started"`
	Duration       time.Duration `json:"duration"`
	Status         string        `json:"status"`
	Keywords       int           `json:"keywords"`
	Admitted       int           `json:"admitted"`
	Filtered       int           `json:"filtered"`
	Duplicates     int           `json:"duplicates"`
	SourceFailures int           `json:"source_failures"`
	KeywordErrors  int           `json:"keyword_errors"`
	Notified       int           `json:"notified"`
	NotifyFailures int           `json:"notify_failures"`
}

// Scheduler owns the cycle loop. Cycles run sequentially on the caller's goroutine.
type Scheduler struct {
	cfg       Config
	queries   []string
	exclusion filter.Exclusion
	targets   []Target
	store     *dedupe.Store
	notifier  bid.Notifier
	ops       bid.Notifier
	clock     bid.Clock
	ids       bid.IDGenerator
	logger    *zap.Logger
	pause     func(ctx context.Context, d time.Duration) error

	mu   sync.RWMutex
	last *Report
}

// New validates deps and builds a Scheduler.
func New(cfg Config, deps Deps) (*Scheduler, error) {
	if len(deps.Targets) == 0 {
		return nil, errors.New("scheduler: at least one source is required")
	}
	for i, t := range deps.Targets {
		if t.Source == nil {
			return nil, fmt.Errorf("scheduler: target %d has no source", i)
		}
	}
	if deps.Notifier == nil {
		return nil, errors.New("scheduler: notifier is required")
	}
	if deps.Clock == nil || deps.IDs == nil {
		return nil, errors.New("scheduler: clock and id generator are required")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeDuration
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if deps.Store == nil {
		deps.Store = dedupe.NewStore(dedupe.DefaultHighWater, dedupe.DefaultLowWater)
	}
	if deps.Ops == nil {
		deps.Ops = deps.Notifier
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:       cfg,
		queries:   deps.Keywords.Queries(),
		exclusion: filter.NewExclusion(deps.Keywords.Exclude),
		targets:   deps.Targets,
		store:     deps.Store,
		notifier:  deps.Notifier,
		ops:       deps.Ops,
		clock:     deps.Clock,
		ids:       deps.IDs,
		logger:    deps.Logger,
		pause:     sleepContext,
	}, nil
}

// LastCycle returns the report of the most recent finished cycle.
func (s *Scheduler) LastCycle() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Report{}, false
	}
	return *s.last, true
}

// Run announces startup, runs cycles according to the configured mode and
// announces shutdown. Cancelling ctx ends the run gracefully. A panic that
// escapes a cycle is reported to the ops webhook and returned as *Failure.
func (s *Scheduler) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			f := newFailure(fmt.Sprint(r))
			s.logger.Error("run aborted", zap.String("error", f.Body.Error), zap.Stack("stack"))
			s.announce(ctx, notify.Failure(f))
			err = f
		}
	}()

	started := s.clock.Now()
	s.logger.Info("run starting",
		zap.String("mode", string(s.cfg.Mode)),
		zap.Duration("duration", s.cfg.Duration),
		zap.Int("keywords", len(s.queries)),
		zap.Int("sources", len(s.targets)),
	)
	s.announce(ctx, notify.Startup(started.Format(TimestampLayout)))

	for {
		s.RunCycle(ctx)
		if removed := s.store.Trim(); removed > 0 {
			s.logger.Debug("dedup store trimmed", zap.Int("removed", removed))
		}
		metrics.SetDedupeSize(s.store.Len())

		if s.done(ctx, started) {
			break
		}
		if err := s.pause(ctx, s.cfg.Interval); err != nil {
			break
		}
	}

	now := s.clock.Now()
	s.logger.Info("run finished", zap.Duration("elapsed", now.Sub(started)))
	s.announce(ctx, notify.Shutdown(now.Format(TimestampLayout)))
	return nil
}

func (s *Scheduler) done(ctx context.Context, started time.Time) bool {
	if ctx.Err() != nil {
		return true
	}
	switch s.cfg.Mode {
	case ModeOnce:
		return true
	case ModeDuration:
		return s.clock.Now().Sub(started) >= s.cfg.Duration
	default:
		return false
	}
}

// announce sends a lifecycle message, outliving a canceled run context.
func (s *Scheduler) announce(ctx context.Context, text string) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if d := s.ops.Send(sendCtx, text); !d.OK {
		s.logger.Warn("lifecycle notification failed",
			zap.Int("errcode", d.ErrCode),
			zap.String("errmsg", d.ErrMsg),
		)
	}
}

// RunCycle performs one pass over every keyword. Failures are contained per
// keyword and per source; the returned report records them.
func (s *Scheduler) RunCycle(ctx context.Context) Report {
	now := s.clock.Now()
	id, err := s.ids.NewID()
	if err != nil {
		s.logger.Warn("cycle id generation failed", zap.Error(err))
	}
	log := s.logger.With(zap.String("cycle_id", id))
	rep := Report{ID: id, Started: now, Status: StatusOK}

	windows := make([]bid.Window, len(s.targets))
	for i, t := range s.targets {
		windows[i] = bid.NewWindow(now, t.Lookback)
	}
	log.Info("cycle started", zap.Time("now", now))

	for i, kw := range s.queries {
		if ctx.Err() != nil {
			rep.Status = StatusCanceled
			break
		}
		s.runKeyword(ctx, log, kw, windows, &rep)
		rep.Keywords++
		if i == len(s.queries)-1 {
			break
		}
		if err := s.pause(ctx, s.cfg.KeywordPause); err != nil {
			rep.Status = StatusCanceled
			break
		}
	}

	if rep.Status == StatusOK && (rep.SourceFailures > 0 || rep.KeywordErrors > 0 || rep.NotifyFailures > 0) {
		rep.Status = StatusDegraded
	}
	rep.Duration = s.clock.Now().Sub(now)
	metrics.ObserveCycle(rep.Status, rep.Duration)
	log.Info("cycle finished",
		zap.String("status", rep.Status),
		zap.Int("admitted", rep.Admitted),
		zap.Int("filtered", rep.Filtered),
		zap.Int("duplicates", rep.Duplicates),
		zap.Int("source_failures", rep.SourceFailures),
		zap.Duration("elapsed", rep.Duration),
	)

	s.mu.Lock()
	last := rep
	s.last = &last
	s.mu.Unlock()
	return rep
}

func (s *Scheduler) runKeyword(ctx context.Context, log *zap.Logger, keyword string, windows []bid.Window, rep *Report) {
	log = log.With(zap.String("keyword", keyword))
	defer func() {
		if r := recover(); r != nil {
			rep.KeywordErrors++
			log.Error("keyword step panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	var candidates []bid.Record
	for i, t := range s.targets {
		name := t.Source.Name()
		records, err := t.Source.Search(ctx, keyword, windows[i])
		switch {
		case err != nil:
			rep.SourceFailures++
			metrics.ObserveQuery(name, metrics.QueryFailed)
			log.Error("source query failed", zap.String("source", name), zap.Error(err))
			continue
		case len(records) == 0:
			metrics.ObserveQuery(name, metrics.QueryEmpty)
			log.Debug("source returned nothing in window", zap.String("source", name))
			continue
		}
		metrics.ObserveQuery(name, metrics.QueryOK)
		candidates = append(candidates, records...)
	}

	var admitted []bid.Record
	for _, r := range candidates {
		if !s.store.IsNew(r) {
			rep.Duplicates++
			metrics.ObserveRecord(r.Source, metrics.RecordDuplicate)
			continue
		}
		if term, hit := s.exclusion.Match(r.Title); hit {
			rep.Filtered++
			metrics.ObserveRecord(r.Source, metrics.RecordFiltered)
			log.Info("record filtered",
				zap.String("source", r.Source),
				zap.String("title", r.Title),
				zap.String("term", term),
			)
			continue
		}
		s.store.Admit(r)
		admitted = append(admitted, r)
		rep.Admitted++
		metrics.ObserveRecord(r.Source, metrics.RecordAdmitted)
	}

	if len(admitted) == 0 {
		log.Info("no new records")
		return
	}

	msg := notify.Format(admitted)
	d := s.notifier.Send(ctx, msg)
	if !d.OK {
		// Admitted records stay in the store; there is no re-delivery.
		rep.NotifyFailures++
		log.Error("notification failed",
			zap.Int("records", len(admitted)),
			zap.Int("errcode", d.ErrCode),
			zap.String("errmsg", d.ErrMsg),
		)
		return
	}
	rep.Notified++
	log.Info("notification sent", zap.Int("records", len(admitted)), zap.String("message", msg))
}

// Search queries every source for keyword and returns the records that pass
// the exclusion filter. It neither consults the dedup store nor notifies.
func (s *Scheduler) Search(ctx context.Context, keyword string) ([]bid.Record, error) {
	now := s.clock.Now()
	var (
		out  []bid.Record
		errs []error
	)
	for _, t := range s.targets {
		records, err := t.Source.Search(ctx, keyword, bid.NewWindow(now, t.Lookback))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, r := range records {
			if s.exclusion.Accept(r) {
				out = append(out, r)
			}
		}
	}
	return out, errors.Join(errs...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
