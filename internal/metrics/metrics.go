// Package metrics exposes Prometheus collectors for the chat flow.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"portfolio-chat/internal/domain"
)

const namespace = "portfolio_chat"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	intents           *prometheus.CounterVec
	retrievalFailures prometheus.Counter
	generationFailure prometheus.Counter
	requests          *prometheus.CounterVec
	duration          prometheus.Histogram
}

// New registers the collectors on reg. Every intent label starts at zero.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		// Labels: intent
		intents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Messages classified, by intent",
		}, []string{"intent"}),
		retrievalFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_failures_total",
			Help:      "Context retrievals that failed and fell back to empty context",
		}),
		generationFailure: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_failures_total",
			Help:      "Response generations that failed",
		}),
		// Labels: code (HTTP status)
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests served, by HTTP status",
		}, []string{"code"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_request_duration_seconds",
			Help:      "Duration of chat requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
	for _, intent := range domain.Intents {
		m.intents.WithLabelValues(intent.String())
	}
	return m
}

func (m *Metrics) IntentClassified(intent domain.Intent) {
	if m == nil {
		return
	}
	m.intents.WithLabelValues(intent.String()).Inc()
}

func (m *Metrics) RetrievalFailed() {
	if m == nil {
		return
	}
	m.retrievalFailures.Inc()
}

func (m *Metrics) GenerationFailed() {
	if m == nil {
		return
	}
	m.generationFailure.Inc()
}

// ChatServed records one finished chat request.
func (m *Metrics) ChatServed(status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(strconv.Itoa(status)).Inc()
	m.duration.Observe(elapsed.Seconds())
}
