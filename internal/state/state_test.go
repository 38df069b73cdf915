package state

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/engine"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "contact:alpha:gilda:state", ContactKey("alpha", "gilda"))
	assert.Equal(t, "contactmgr:alpha:geo", GeoKey("alpha"))
	assert.Equal(t, "contactmgr:alpha:alerts", AlertChannel("alpha"))
}

func TestContactFields(t *testing.T) {
	fields := contactFields(engine.ContactStatus{
		Name:         "gilda",
		Type:         "kayak",
		X:            10,
		Range:        12.5,
		Ranges:       engine.Ranges{Actual: 10, Extrapolated: 11, CPA: 12.5},
		AlertsActive: 1,
		Report:       "NAME=gilda",
	})

	assert.Equal(t, "gilda", fields["name"])
	assert.Equal(t, "kayak", fields["type"])
	assert.Equal(t, 12.5, fields["range"])
	assert.Equal(t, 11.0, fields["range_extrap"])
	assert.Equal(t, 1, fields["alerts_active"])
	assert.Equal(t, false, fields["retired"])
}

type fakeMirror struct {
	mu       sync.Mutex
	contacts [][]engine.ContactStatus
	alerts   []model.AlertEvent
}

func (m *fakeMirror) WriteContacts(_ context.Context, contacts []engine.ContactStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts = append(m.contacts, contacts)
	return nil
}

func (m *fakeMirror) PublishAlerts(_ context.Context, alerts []model.AlertEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alerts...)
	return nil
}

func (m *fakeMirror) alertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

func status(names ...string) engine.Status {
	var st engine.Status
	for _, n := range names {
		st.Contacts = append(st.Contacts, engine.ContactStatus{Name: n})
	}
	return st
}

func TestStateWriter_Flushes(t *testing.T) {
	mirror := &fakeMirror{}
	w := NewStateWriter(mirror, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Submit(status("gilda"), []model.AlertEvent{{Contact: "gilda", AlertID: "avd"}})

	require.Eventually(t, func() bool { return mirror.alertCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestStateWriter_KeepsLatestAndAllAlerts(t *testing.T) {
	mirror := &fakeMirror{}
	w := NewStateWriter(mirror, testLogger())

	// Nothing is draining the queue yet
	w.Submit(status("a"), []model.AlertEvent{{AlertID: "first"}})
	w.Submit(status("a", "b"), []model.AlertEvent{{AlertID: "second"}})
	w.Submit(status("a", "b", "c"), nil)

	require.Len(t, w.ch, 1)
	u := <-w.ch
	assert.Len(t, u.contacts, 3)
	require.Len(t, u.alerts, 2)
	assert.Equal(t, "first", u.alerts[0].AlertID)
	assert.Equal(t, "second", u.alerts[1].AlertID)
	assert.Equal(t, int64(0), w.Dropped())
}
