package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Funnel bundles the Prometheus collectors shared by the funnel core.
// A nil *Funnel is valid and records nothing.
type Funnel struct {
	persists    *prometheus.CounterVec
	completions *prometheus.CounterVec
	rounds      prometheus.Histogram
	toolCalls   *prometheus.CounterVec
	enrichments *prometheus.CounterVec
	visitors    prometheus.Gauge
}

func NewFunnel(reg prometheus.Registerer) *Funnel {
	m := &Funnel{
		persists: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_session_persist_total",
				Help: "Session persistence attempts by outcome.",
			},
			[]string{"outcome"},
		),
		completions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_completion_total",
				Help: "Chat completions by final state.",
			},
			[]string{"state"},
		),
		rounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "funnel_completion_rounds",
			Help:    "Model round trips needed per completion.",
			Buckets: []float64{1, 2, 3, 4},
		}),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_tool_calls_total",
				Help: "Tool invocations requested by the model.",
			},
			[]string{"tool", "status"},
		),
		enrichments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_enrichment_total",
				Help: "Enrichment webhook lookups by outcome.",
			},
			[]string{"outcome"},
		),
		visitors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "funnel_live_visitors",
			Help: "Visitor sessions currently held in memory.",
		}),
	}

	reg.MustRegister(m.persists, m.completions, m.rounds, m.toolCalls, m.enrichments, m.visitors)
	return m
}

func (m *Funnel) Persist(outcome string) {
	if m == nil {
		return
	}
	m.persists.WithLabelValues(outcome).Inc()
}

func (m *Funnel) Completion(state string, rounds int) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(state).Inc()
	if rounds > 0 {
		m.rounds.Observe(float64(rounds))
	}
}

func (m *Funnel) ToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
}

func (m *Funnel) Enrichment(outcome string) {
	if m == nil {
		return
	}
	m.enrichments.WithLabelValues(outcome).Inc()
}

func (m *Funnel) VisitorAdded() {
	if m == nil {
		return
	}
	m.visitors.Inc()
}

func (m *Funnel) VisitorRemoved() {
	if m == nil {
		return
	}
	m.visitors.Dec()
}
