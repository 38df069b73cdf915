package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.IncMail("NODE_REPORT")
	m.IncMail("NODE_REPORT")
	m.IncMail("NAV_X")
	m.IncAlertsFired("avd")
	m.IncResolutions()
	m.IncWarnings("run")
	m.IncTicks()
	m.IncPublishErrors()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MailTotal.WithLabelValues("NODE_REPORT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MailTotal.WithLabelValues("NAV_X")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsFired.WithLabelValues("avd")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResolutionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WarningsTotal.WithLabelValues("run")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.WarningsTotal.WithLabelValues("config")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TicksTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishErrors))
}

func TestMetrics_Gauges(t *testing.T) {
	m := NewMetrics()

	m.SetContacts(5, 2)
	m.SetAlertsActive(3)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.ContactsKnown))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ContactsRetired))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.AlertsActive))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.IncTicks()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.TicksTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.TicksTotal))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.IncTicks()
	m.ObserveTickDuration(0.002)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "contactmgr_ticks_total 1")
	assert.Contains(t, string(body), "contactmgr_tick_duration_seconds_count 1")
}
