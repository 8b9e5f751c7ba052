// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "review_matrix"

// Metrics holds the counters and histograms recorded during a run. All
// methods are safe on a nil *Metrics so stages can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	// HTTPRequests counts bibliographic API attempts by endpoint and status.
	HTTPRequests *prometheus.CounterVec

	// HTTPRetries counts backoff waits taken by the retrying client.
	HTTPRetries prometheus.Counter

	// LookupFailures counts collector lookups converted into empty results.
	LookupFailures *prometheus.CounterVec

	// Enrichments counts abstract enrichment outcomes (filled, unmatched, failed).
	Enrichments *prometheus.CounterVec

	// PapersDropped counts papers removed by each normalizer step.
	PapersDropped *prometheus.CounterVec

	// LLMCalls counts LLM calls by operation and outcome.
	LLMCalls *prometheus.CounterVec

	// LLMDuration observes LLM call latency in seconds by operation.
	LLMDuration *prometheus.HistogramVec

	// IterationCandidates records frontier size per round.
	IterationCandidates *prometheus.GaugeVec
}

// NewMetrics registers all metrics on a fresh registry owned by the run.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Bibliographic API request attempts by endpoint and status code",
		}, []string{"endpoint", "status"}),
		HTTPRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_retries_total",
			Help:      "Backoff waits taken after rate-limit or server errors",
		}),
		LookupFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_failures_total",
			Help:      "Collector lookups that failed and yielded no results",
		}, []string{"kind"}),
		Enrichments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "abstract_enrichments_total",
			Help:      "Abstract enrichment attempts by outcome",
		}, []string{"outcome"}),
		PapersDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_dropped_total",
			Help:      "Papers removed by each normalization step",
		}, []string{"step"}),
		LLMCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "LLM calls by operation and outcome",
		}, []string{"operation", "outcome"}),
		LLMDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "LLM call latency",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"operation"}),
		IterationCandidates: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "iteration_candidates",
			Help:      "Candidates per round after normalization",
		}, []string{"iteration"}),
	}
}

// Registry exposes the underlying registry as a Gatherer.
func (m *Metrics) Registry() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// WriteTextfile writes all metrics in the Prometheus text format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) ObserveHTTP(endpoint string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.HTTPRetries.Inc()
}

func (m *Metrics) ObserveLookupFailure(kind string) {
	if m == nil {
		return
	}
	m.LookupFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveEnrichment(outcome string) {
	if m == nil {
		return
	}
	m.Enrichments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDropped(step string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PapersDropped.WithLabelValues(step).Add(float64(n))
}

func (m *Metrics) ObserveLLM(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.LLMCalls.WithLabelValues(operation, outcome).Inc()
	m.LLMDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *Metrics) SetIterationCandidates(iteration, n int) {
	if m == nil {
		return
	}
	m.IterationCandidates.WithLabelValues(strconv.Itoa(iteration)).Set(float64(n))
}
