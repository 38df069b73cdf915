package state

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/engine"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/model"
)

// Mirror is the destination a StateWriter flushes to
type Mirror interface {
	WriteContacts(ctx context.Context, contacts []engine.ContactStatus) error
	PublishAlerts(ctx context.Context, alerts []model.AlertEvent) error
}

type update struct {
	contacts []engine.ContactStatus
	alerts   []model.AlertEvent
}

// StateWriter decouples the runner from Redis. Only the latest contact state
// is kept while the mirror is busy; alert events are never dropped in favor
// of a newer update.
type StateWriter struct {
	ch      chan update
	mirror  Mirror
	logger  *slog.Logger
	dropped atomic.Int64
}

// NewStateWriter creates a writer flushing to mirror
func NewStateWriter(mirror Mirror, logger *slog.Logger) *StateWriter {
	return &StateWriter{
		ch:     make(chan update, 1),
		mirror: mirror,
		logger: logger,
	}
}

// Submit queues the status of one tick without blocking
func (w *StateWriter) Submit(status engine.Status, alerts []model.AlertEvent) {
	u := update{contacts: status.Contacts, alerts: alerts}

	select {
	case w.ch <- u:
		return
	default:
	}

	// Queue full: replace the pending update, keeping its alerts
	select {
	case old := <-w.ch:
		u.alerts = append(old.alerts, u.alerts...)
	default:
	}

	select {
	case w.ch <- u:
	default:
		w.dropped.Add(1)
	}
}

// Dropped returns the number of updates that could not be queued
func (w *StateWriter) Dropped() int64 {
	return w.dropped.Load()
}

// Run flushes queued updates until ctx is done
func (w *StateWriter) Run(ctx context.Context) {
	for {
		select {
		case u := <-w.ch:
			w.flush(ctx, u)

		case <-ctx.Done():
			return
		}
	}
}

func (w *StateWriter) flush(ctx context.Context, u update) {
	if err := w.mirror.WriteContacts(ctx, u.contacts); err != nil {
		w.logger.Error("Redis state update failed", "contacts", len(u.contacts), "error", err)
	}
	if err := w.mirror.PublishAlerts(ctx, u.alerts); err != nil {
		w.logger.Error("Redis alert publish failed", "alerts", len(u.alerts), "error", err)
	}
}
