// Package node hosts a contact engine on a single goroutine. Inbound mail,
// periodic ticks, rule reloads and API reads are serialized through one
// loop so the engine never needs locking.
package node

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/engine"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/metrics"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/model"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/rules"
)

// ErrStopped is returned when the runner loop is no longer running
var ErrStopped = errors.New("runner stopped")

// Publisher sends postings to the outside world
type Publisher interface {
	Publish(ctx context.Context, postings []model.Posting) error
}

// AlertSink records alert events
type AlertSink interface {
	Add(ev model.AlertEvent) model.AlertEvent
}

// StateSink receives the engine status after every tick. Submit must not
// block.
type StateSink interface {
	Submit(status engine.Status, alerts []model.AlertEvent)
}

// RuleSource supplies alert rule snapshots and change notifications
type RuleSource interface {
	Subscribe() <-chan struct{}
	GetSnapshot() *rules.RuleSnapshot
}

type call struct {
	fn   func(*engine.Engine)
	done chan struct{}
}

// Runner owns one engine and drives it from a single goroutine
type Runner struct {
	engine   *engine.Engine
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	inbox chan model.Mail
	calls chan call

	publishers []Publisher
	alerts     AlertSink
	state      StateSink
	metrics    *metrics.Metrics
	rules      RuleSource

	rulesVersion int64
	running      atomic.Bool
	stopped      chan struct{}
}

// Option configures a Runner
type Option func(*Runner)

// WithPublisher adds a destination for postings
func WithPublisher(p Publisher) Option {
	return func(r *Runner) {
		r.publishers = append(r.publishers, p)
	}
}

// WithAlertSink records fired and resolved alerts
func WithAlertSink(s AlertSink) Option {
	return func(r *Runner) {
		r.alerts = s
	}
}

// WithStateSink mirrors the engine status after every tick
func WithStateSink(s StateSink) Option {
	return func(r *Runner) {
		r.state = s
	}
}

// WithMetrics records runner activity
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithRuleSource applies alert rules from a loader as they change
func WithRuleSource(src RuleSource) Option {
	return func(r *Runner) {
		r.rules = src
	}
}

// WithClock replaces the wall clock used for ticks
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a runner ticking the engine every interval
func NewRunner(e *engine.Engine, interval time.Duration, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	r := &Runner{
		engine:   e,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		inbox:    make(chan model.Mail, 1024),
		calls:    make(chan call),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ready reports whether the loop is running
func (r *Runner) Ready() bool {
	return r.running.Load()
}

// Deliver queues one inbound message for the next batch
func (r *Runner) Deliver(ctx context.Context, m model.Mail) error {
	select {
	case <-r.stopped:
		return ErrStopped
	default:
	}

	select {
	case r.inbox <- m:
		return nil
	case <-r.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the runner goroutine and waits for it to finish. fn may read
// or mutate the engine but must not block.
func (r *Runner) Do(ctx context.Context, fn func(*engine.Engine)) error {
	c := call{fn: fn, done: make(chan struct{})}

	select {
	case r.calls <- c:
	case <-r.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes mail, ticks, rule updates and calls until ctx is done
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var ruleChanges <-chan struct{}
	if r.rules != nil {
		ruleChanges = r.rules.Subscribe()
	}

	r.running.Store(true)
	defer func() {
		r.running.Store(false)
		close(r.stopped)
	}()

	r.logger.Info("Runner started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Runner stopped")
			return nil

		case m := <-r.inbox:
			r.handleMail(ctx, r.drain(m))

		case <-ticker.C:
			r.tick(ctx, r.now())

		case <-ruleChanges:
			r.applyRules()

		case c := <-r.calls:
			c.fn(r.engine)
			close(c.done)
		}
	}
}

// drain collects every queued message behind first into one batch
func (r *Runner) drain(first model.Mail) []model.Mail {
	batch := []model.Mail{first}
	for {
		select {
		case m := <-r.inbox:
			batch = append(batch, m)
		default:
			return batch
		}
	}
}

func (r *Runner) handleMail(ctx context.Context, batch []model.Mail) {
	if r.metrics != nil {
		for _, m := range batch {
			r.metrics.IncMail(m.Key)
		}
	}

	out := r.engine.OnMail(batch)
	r.dispatch(ctx, out)
}

func (r *Runner) tick(ctx context.Context, now time.Time) {
	start := time.Now()
	out := r.engine.Tick(now)
	r.dispatch(ctx, out)

	if r.metrics == nil && r.state == nil {
		return
	}

	status := r.engine.Snapshot(now)
	if r.metrics != nil {
		r.metrics.IncTicks()
		r.metrics.ObserveTickDuration(time.Since(start).Seconds())
		r.recordGauges(status)
	}
	if r.state != nil {
		r.state.Submit(status, out.Alerts)
	}
}

func (r *Runner) recordGauges(status engine.Status) {
	retired, active := 0, 0
	for _, c := range status.Contacts {
		if c.Retired {
			retired++
		}
		active += c.AlertsActive
	}
	r.metrics.SetContacts(len(status.Contacts), retired)
	r.metrics.SetAlertsActive(active)
}

// dispatch forwards the effects of one engine call
func (r *Runner) dispatch(ctx context.Context, out engine.Output) {
	if out.Empty() {
		return
	}

	if len(out.Postings) > 0 {
		for _, p := range r.publishers {
			if err := p.Publish(ctx, out.Postings); err != nil {
				r.logger.Error("Failed to publish postings", "count", len(out.Postings), "error", err)
				if r.metrics != nil {
					r.metrics.IncPublishErrors()
				}
			}
		}
	}

	for _, ev := range out.Alerts {
		if r.alerts != nil {
			r.alerts.Add(ev)
		}
		if r.metrics != nil {
			if ev.Resolved {
				r.metrics.IncResolutions()
			} else {
				r.metrics.IncAlertsFired(ev.AlertID)
			}
		}
	}

	if r.metrics != nil {
		for range out.Warnings {
			r.metrics.IncWarnings("run")
		}
	}
}

// applyRules upserts every rule of a new loader snapshot. Rules removed
// from the files stay configured until restart.
func (r *Runner) applyRules() {
	snap := r.rules.GetSnapshot()
	if snap == nil || snap.Version == r.rulesVersion {
		return
	}
	r.rulesVersion = snap.Version

	applied := 0
	for _, rule := range snap.Rules {
		if !rule.IsEnabled() {
			continue
		}
		if err := r.engine.UpsertRule(rule); err != nil {
			r.logger.Warn("Alert rule rejected", "alert_id", rule.ID, "file", rule.SourceFile, "error", err)
			if r.metrics != nil {
				r.metrics.IncWarnings("config")
			}
			continue
		}
		applied++
	}

	r.logger.Info("Alert rules applied", "version", snap.Version, "rules", applied)
}
