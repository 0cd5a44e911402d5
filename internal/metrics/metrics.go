// Package metrics exposes Prometheus collectors for the collection core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "etlive"

// Poll outcomes used as the "outcome" label of polls_total.
const (
	OutcomeOK = "ok"
	// OutcomePanic marks a poll whose task panicked and was recovered.
	OutcomePanic = "panic"
)

// Metrics holds all the Prometheus collectors for the service.
type Metrics struct {
	registry *prometheus.Registry

	Ticks        prometheus.Counter
	PollsTotal   *prometheus.CounterVec
	PollDuration *prometheus.HistogramVec
	PollsSkipped *prometheus.CounterVec
	PollsActive  prometheus.Gauge
	NodeOnline   *prometheus.GaugeVec
}

// New creates a Metrics instance registered on its own registry, so several
// instances (e.g. in tests) never collide on the global default registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Total number of collection ticks fired",
		}),
		PollsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Total number of completed polls by node and outcome",
		}, []string{"node", "outcome"}),
		PollDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Wall-clock duration of node polls",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"node"}),
		PollsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_skipped_total",
			Help:      "Ticks on which a node was skipped because its previous poll was still running",
		}, []string{"node"}),
		PollsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "polls_in_flight",
			Help:      "Number of polls currently in flight",
		}),
		NodeOnline: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "node_online",
			Help:      "1 if the node's cached value is present, 0 otherwise",
		}, []string{"node"}),
	}
}

// ObservePoll records a completed poll.
func (m *Metrics) ObservePoll(node, outcome string, seconds float64) {
	m.PollsTotal.WithLabelValues(node, outcome).Inc()
	m.PollDuration.WithLabelValues(node).Observe(seconds)
	if outcome == OutcomeOK {
		m.NodeOnline.WithLabelValues(node).Set(1)
	} else {
		m.NodeOnline.WithLabelValues(node).Set(0)
	}
}

// Handler returns the HTTP handler serving this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
