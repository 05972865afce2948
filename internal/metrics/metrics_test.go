package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"portfolio-chat/internal/domain"
)

func TestMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IntentClassified(domain.IntentGreeting)
	m.IntentClassified(domain.IntentGreeting)
	m.IntentClassified(domain.IntentProjects)
	m.RetrievalFailed()
	m.GenerationFailed()
	m.GenerationFailed()
	m.ChatServed(200, 120*time.Millisecond)
	m.ChatServed(400, time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.intents.WithLabelValues("greeting")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.intents.WithLabelValues("projects")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.retrievalFailures))
	require.Equal(t, 2.0, testutil.ToFloat64(m.generationFailure))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("200")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("400")))
	require.Equal(t, 1, testutil.CollectAndCount(m.duration))
	m.ChatServed(200, time.Second)
	require.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("200")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "portfolio_chat_intents_total")
	require.Contains(t, names, "portfolio_chat_chat_request_duration_seconds")
}

func TestNew_InitializesIntentLabels(t *testing.T) {
	m := New(prometheus.NewRegistry())
	require.Equal(t, len(domain.Intents), testutil.CollectAndCount(m.intents))
	for _, intent := range domain.Intents {
		require.Zero(t, testutil.ToFloat64(m.intents.WithLabelValues(intent.String())))
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.IntentClassified(domain.IntentGeneral)
		m.RetrievalFailed()
		m.GenerationFailed()
		m.ChatServed(500, time.Second)
	})
}

func TestNew_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	require.Panics(t, func() { New(reg) })
}
