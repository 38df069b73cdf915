package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/engine"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/metrics"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/model"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/node"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	srv    *httptest.Server
	runner *node.Runner
	store  *store.MemoryStore
}

func newFixture(t *testing.T, checks ...ReadinessCheck) *fixture {
	t.Helper()

	e, err := engine.New("alpha", testLogger())
	require.NoError(t, err)
	require.Empty(t, e.Configure([]string{"alert = id=avd,var=AVD,val=$[VNAME],alert_range=100"}))

	st := store.NewMemoryStore(100, 100)
	m := metrics.NewMetrics()
	runner := node.NewRunner(e, 10*time.Millisecond, testLogger(),
		node.WithAlertSink(st), node.WithMetrics(m))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()
	require.Eventually(t, runner.Ready, time.Second, 5*time.Millisecond)

	srv := httptest.NewServer(NewHTTPAPI(runner, st, m, testLogger(), checks...).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})

	return &fixture{srv: srv, runner: runner, store: st}
}

func (f *fixture) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

// peek fetches path without failing the test, for use inside Eventually
func (f *fixture) peek(path string) string {
	resp, err := http.Get(f.srv.URL + path)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func (f *fixture) post(t *testing.T, path, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(out)
}

func (f *fixture) report(t *testing.T, s string) {
	t.Helper()
	require.NoError(t, f.runner.Deliver(context.Background(), model.StringMail(engine.VarNodeReport, s, time.Now())))
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t)

	code, body := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"healthy"`)

	code, body = f.get(t, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"ready"`)

	code, body = f.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "contactmgr_ticks_total")
}

func TestReady_FailingCheck(t *testing.T) {
	f := newFixture(t, ReadinessCheck{Name: "nats", Ready: func() bool { return false }})

	code, body := f.get(t, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, `"nats":false`)
}

func TestContacts(t *testing.T) {
	f := newFixture(t)
	f.report(t, "NAME=gilda,TYPE=kayak,X=10,Y=0")

	require.Eventually(t, func() bool {
		return strings.Contains(f.peek("/contacts"), `"count":1`)
	}, 2*time.Second, 10*time.Millisecond)

	code, body := f.get(t, "/contacts/gilda")
	require.Equal(t, http.StatusOK, code)

	var cs engine.ContactStatus
	require.NoError(t, json.Unmarshal([]byte(body), &cs))
	assert.Equal(t, "gilda", cs.Name)
	assert.Equal(t, "kayak", cs.Type)

	code, _ = f.get(t, "/contacts/nobody")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRulesAndAlertRequest(t *testing.T) {
	f := newFixture(t)

	code, body := f.get(t, "/rules")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"id":"avd"`)

	code, _ = f.post(t, "/alerts/request", "id=trail,bogus=1")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.post(t, "/alerts/request", "id=trail,var=TRAIL,val=$[VNAME],alert_range=50")
	assert.Equal(t, http.StatusAccepted, code)

	require.Eventually(t, func() bool {
		return strings.Contains(f.peek("/rules"), `"id":"trail"`)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	f.report(t, "NAME=gilda,X=10,Y=0")

	// The alert fires on a tick and reaches the history
	require.Eventually(t, func() bool {
		return len(f.store.ByContact("gilda", 0)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	code, _ := f.post(t, "/resolve", "not json")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.post(t, "/resolve", `{"alert_id":"avd"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.post(t, "/resolve", `{"contact":"gilda","alert_id":"avd"}`)
	assert.Equal(t, http.StatusAccepted, code)

	// Resolution event, then the alert fires again
	require.Eventually(t, func() bool {
		return len(f.store.ByContact("gilda", 0)) == 3
	}, 2*time.Second, 10*time.Millisecond)

	events := f.store.ByContact("gilda", 0)
	assert.False(t, events[0].Resolved)
	assert.True(t, events[1].Resolved)
}

func TestAlertsHistory(t *testing.T) {
	f := newFixture(t)
	f.store.Add(model.AlertEvent{Contact: "gilda", AlertID: "avd"})
	f.store.Add(model.AlertEvent{Contact: "henry", AlertID: "avd"})
	f.store.Add(model.AlertEvent{Contact: "gilda", AlertID: "trail"})

	_, body := f.get(t, "/alerts")
	assert.Contains(t, body, `"count":3`)

	_, body = f.get(t, "/alerts?contact=gilda")
	assert.Contains(t, body, `"count":2`)

	_, body = f.get(t, "/alerts?limit=1")
	assert.Contains(t, body, `"count":1`)

	code, _ := f.get(t, "/alerts?limit=abc")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.post(t, "/alerts/reset", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, f.store.Recent(0))
}

func TestReportAndStatus(t *testing.T) {
	f := newFixture(t)

	code, body := f.get(t, "/report")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Alert Configurations (1):")
	assert.Contains(t, body, "Alert ID = avd")

	code, body = f.get(t, "/status")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"ownship":"alpha"`)
}
