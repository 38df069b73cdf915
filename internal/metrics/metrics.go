package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "contactmgr"

// Metrics holds all the Prometheus metrics for the contact manager
type Metrics struct {
	registry *prometheus.Registry

	MailTotal        *prometheus.CounterVec
	AlertsFired      *prometheus.CounterVec
	ResolutionsTotal prometheus.Counter
	WarningsTotal    *prometheus.CounterVec
	TicksTotal       prometheus.Counter
	PublishErrors    prometheus.Counter

	ContactsKnown   prometheus.Gauge
	ContactsRetired prometheus.Gauge
	AlertsActive    prometheus.Gauge

	TickDuration prometheus.Histogram
}

// NewMetrics creates a new Metrics instance registered on its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		MailTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_total",
			Help:      "Total number of inbound messages handled, by key",
		}, []string{"key"}),
		AlertsFired: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_fired_total",
			Help:      "Total number of alerts fired, by alert id",
		}, []string{"alert_id"}),
		ResolutionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Total number of accepted alert resolutions",
		}),
		WarningsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Total number of warnings, by kind",
		}, []string{"kind"}),
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Total number of engine iterations",
		}),
		PublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total number of posting publish errors",
		}),
		ContactsKnown: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "contacts_known",
			Help:      "Number of contacts in the registry",
		}),
		ContactsRetired: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "contacts_retired",
			Help:      "Number of contacts older than contact_max_age",
		}),
		AlertsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alerts_active",
			Help:      "Number of fired alerts not yet resolved",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent in one engine iteration",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// IncMail increments the mail counter for a key
func (m *Metrics) IncMail(key string) {
	m.MailTotal.WithLabelValues(key).Inc()
}

// IncAlertsFired increments the fired counter for an alert id
func (m *Metrics) IncAlertsFired(alertID string) {
	m.AlertsFired.WithLabelValues(alertID).Inc()
}

// IncResolutions increments the resolutions counter
func (m *Metrics) IncResolutions() {
	m.ResolutionsTotal.Inc()
}

// IncWarnings increments the warnings counter for a kind ("config" or "run")
func (m *Metrics) IncWarnings(kind string) {
	m.WarningsTotal.WithLabelValues(kind).Inc()
}

// IncTicks increments the iteration counter
func (m *Metrics) IncTicks() {
	m.TicksTotal.Inc()
}

// IncPublishErrors increments the publish error counter
func (m *Metrics) IncPublishErrors() {
	m.PublishErrors.Inc()
}

// SetContacts records the registry size and the retired count
func (m *Metrics) SetContacts(known, retired int) {
	m.ContactsKnown.Set(float64(known))
	m.ContactsRetired.Set(float64(retired))
}

// SetAlertsActive records the number of armed alerts
func (m *Metrics) SetAlertsActive(n int) {
	m.AlertsActive.Set(float64(n))
}

// ObserveTickDuration records the duration of one iteration
func (m *Metrics) ObserveTickDuration(seconds float64) {
	m.TickDuration.Observe(seconds)
}
