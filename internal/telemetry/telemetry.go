// Package telemetry owns the prometheus metrics and the per-run LLM cost
// tracker.
package telemetry

import (
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prospero-intel/prospero/provider"
)

// Metrics holds the pipeline's prometheus instruments on a private
// registry so tests can build isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	ArticlesScraped   *prometheus.CounterVec
	FunnelOutcomes    *prometheus.CounterVec
	AgentCalls        *prometheus.CounterVec
	AgentLatency      *prometheus.HistogramVec
	CacheOps          *prometheus.CounterVec
	EventsSynthesized prometheus.Counter
	RunDuration       prometheus.Histogram
}

// NewMetrics registers all instruments on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ArticlesScraped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prospero", Name: "articles_scraped_total",
			Help: "Candidate articles produced by acquisition, per source.",
		}, []string{"source"}),
		FunnelOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prospero", Name: "funnel_outcomes_total",
			Help: "Terminal outcomes recorded in the funnel ledger.",
		}, []string{"outcome"}),
		AgentCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prospero", Name: "agent_calls_total",
			Help: "Agent invocations by agent name and result.",
		}, []string{"agent", "result"}),
		AgentLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "prospero", Name: "agent_latency_seconds",
			Help:    "Agent invocation latency.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"agent"}),
		CacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prospero", Name: "cache_ops_total",
			Help: "Agent cache operations by backend and result.",
		}, []string{"backend", "result"}),
		EventsSynthesized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "prospero", Name: "events_synthesized_total",
			Help: "Synthesized events produced across runs.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "prospero", Name: "run_duration_seconds",
			Help:    "End-to-end pipeline run duration.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 8),
		}),
	}
	reg.MustRegister(
		m.ArticlesScraped, m.FunnelOutcomes, m.AgentCalls, m.AgentLatency,
		m.CacheOps, m.EventsSynthesized, m.RunDuration,
	)
	return m
}

// Handler serves this registry's metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// AgentCall records one agent invocation outcome and its latency. Satisfies
// the invoker's Observer.
func (m *Metrics) AgentCall(agent, result string, seconds float64) {
	m.AgentCalls.WithLabelValues(agent, result).Inc()
	m.AgentLatency.WithLabelValues(agent).Observe(seconds)
}

// CacheOp records one agent-cache operation by backend and result.
func (m *Metrics) CacheOp(backend, result string) {
	m.CacheOps.WithLabelValues(backend, result).Inc()
}

// CostTracker accumulates token usage and an approximate dollar cost per
// model across a run.
type CostTracker struct {
	provider provider.Provider

	mu    sync.Mutex
	usage map[string]provider.Usage
	cost  float64
}

// NewCostTracker builds a tracker pricing usage via the provider.
func NewCostTracker(p provider.Provider) *CostTracker {
	return &CostTracker{provider: p, usage: make(map[string]provider.Usage)}
}

// Record adds one call's usage under its model.
func (c *CostTracker) Record(model string, usage provider.Usage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u := c.usage[model]
	u.PromptTokens += usage.PromptTokens
	u.CompletionTokens += usage.CompletionTokens
	c.usage[model] = u
	c.cost += c.provider.CostEstimate(model, usage)
}

// ModelUsage is one model's accumulated totals.
type ModelUsage struct {
	Model            string  `json:"model"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// Report returns per-model totals sorted by model name, plus the overall
// estimated cost.
func (c *CostTracker) Report() ([]ModelUsage, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ModelUsage, 0, len(c.usage))
	for model, u := range c.usage {
		out = append(out, ModelUsage{
			Model:            model,
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			CostUSD:          c.provider.CostEstimate(model, u),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out, c.cost
}
