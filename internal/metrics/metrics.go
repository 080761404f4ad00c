// Package metrics mirrors the render surface into Prometheus gauges and counts
// poll and layout activity.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solax-flow/internal/render"
	"solax-flow/internal/state"
)

const namespace = "solaxflow"

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	tileState  *prometheus.GaugeVec
	wireOnline *prometheus.GaugeVec
	value      *prometheus.GaugeVec
	total      prometheus.Gauge

	fetches   *prometheus.CounterVec
	discarded prometheus.Counter
	layouts   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tileState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tile_state",
			Help:      "Current tile state (1 for the active state, 0 otherwise)",
		}, []string{"side", "role", "state"}),
		wireOnline: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wire_online",
			Help:      "Wire is drawn online (1=yes, 0=offline)",
		}, []string{"side", "wire"}),
		value: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "display_value",
			Help:      "Displayed value per slot (kW for power fields, percent for battery-soc)",
		}, []string{"side", "field"}),
		total: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_consumption_kw",
			Help:      "Displayed installation-wide consumption in kW",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Telemetry fetches by result",
		}, []string{"result"}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discarded_updates_total",
			Help:      "Payloads rejected as malformed",
		}),
		layouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layout_passes_total",
			Help:      "Layout passes per side by result",
		}, []string{"side", "result"}),
	}

	m.registry.MustRegister(
		m.tileState,
		m.wireOnline,
		m.value,
		m.total,
		m.fetches,
		m.discarded,
		m.layouts,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Name() string { return "metrics" }

// Apply implements render.Surface. Rect writes are ignored.
func (m *Metrics) Apply(_ context.Context, p render.Patch) error {
	for _, t := range p.Tiles {
		for _, s := range state.States {
			v := 0.0
			if s == t.State {
				v = 1
			}
			m.tileState.WithLabelValues(string(t.Side), t.Role.String(), s.String()).Set(v)
		}
	}
	for _, w := range p.Wires {
		v := 1.0
		if w.Offline {
			v = 0
		}
		m.wireOnline.WithLabelValues(string(w.Side), string(w.Part)).Set(v)
	}
	for _, t := range p.Texts {
		if t.Field == render.FieldTotal {
			m.total.Set(t.Value)
			continue
		}
		m.value.WithLabelValues(string(t.Side), string(t.Field)).Set(t.Value)
	}
	return nil
}

// FetchDone counts one completed fetch. Nil-safe.
func (m *Metrics) FetchDone(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.fetches.WithLabelValues(result).Inc()
}

func (m *Metrics) Discarded() {
	if m == nil {
		return
	}
	m.discarded.Inc()
}

// LayoutPass counts one per-side layout computation. Nil-safe.
func (m *Metrics) LayoutPass(side string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "skipped"
	}
	m.layouts.WithLabelValues(side, result).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
