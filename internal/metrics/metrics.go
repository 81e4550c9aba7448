// Package metrics exposes daemon counters through a private Prometheus
// registry.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all daemon metrics. Counters are plain atomics mutated on
// the hot path; Prometheus reads them lazily through GaugeFunc collectors.
type Metrics struct {
	ChecksRun         atomic.Uint64
	CaptureErrors     atomic.Uint64
	ClassifyFailures  atomic.Uint64
	AlertsSent        atomic.Uint64
	ConfirmationsSent atomic.Uint64
	TestNotifications atomic.Uint64
	ChecksDropped     atomic.Uint64
	CheckPanics       atomic.Uint64

	BinPresent   atomic.Uint64 // 0 = absent/unknown, 1 = present
	WindowActive atomic.Uint64 // 0 = between windows, 1 = inside a window

	registry *prometheus.Registry
}

// New creates a Metrics instance with its collectors registered.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	gauges := []struct {
		name string
		help string
		load func() uint64
	}{
		{"trashminder_checks_total", "Total checks executed", m.ChecksRun.Load},
		{"trashminder_capture_errors_total", "Total camera snapshot failures", m.CaptureErrors.Load},
		{"trashminder_classify_failures_total", "Total classifier failures that fell back to the safe default", m.ClassifyFailures.Load},
		{"trashminder_alerts_sent_total", "Total missing-bin alerts sent", m.AlertsSent.Load},
		{"trashminder_confirmations_sent_total", "Total first-success confirmations sent", m.ConfirmationsSent.Load},
		{"trashminder_test_notifications_total", "Total test-mode diagnostic notifications sent", m.TestNotifications.Load},
		{"trashminder_checks_dropped_total", "Total checks dropped at registration", m.ChecksDropped.Load},
		{"trashminder_check_panics_total", "Total checks aborted by the panic guard", m.CheckPanics.Load},
		{"trashminder_bin_present", "Last verdict (1=present, 0=absent or unknown)", m.BinPresent.Load},
		{"trashminder_window_active", "Whether a monitoring window is in progress", m.WindowActive.Load},
	}
	for _, g := range gauges {
		load := g.load
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			func() float64 { return float64(load()) },
		))
	}

	return m
}

// SetBool stores a boolean into a 0/1 gauge backing atomic.
func SetBool(g *atomic.Uint64, v bool) {
	if v {
		g.Store(1)
	} else {
		g.Store(0)
	}
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
