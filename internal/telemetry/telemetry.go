// Package telemetry exposes interpreter metrics in Prometheus format.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-interpreter/pkg/assistant"
	"github.com/teslashibe/go-interpreter/pkg/bridge"
	"github.com/teslashibe/go-interpreter/pkg/dialogue"
	"github.com/teslashibe/go-interpreter/pkg/hub"
)

// DefaultNamespace prefixes every metric name when New is given none.
const DefaultNamespace = "interpreter"

// Metrics holds all Prometheus metrics for the interpreter.
type Metrics struct {
	registry  *prometheus.Registry
	namespace string

	// Turn metrics
	TurnsTotal    *prometheus.CounterVec
	TurnDuration  *prometheus.HistogramVec
	StageDuration *prometheus.HistogramVec
	FailuresTotal *prometheus.CounterVec
}

// New creates a Metrics instance with turn metrics and the Go runtime
// collectors registered.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	registry := prometheus.NewRegistry()

	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of conversation turns by outcome",
		},
		[]string{"source", "language", "outcome"},
	)

	turnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"language"},
	)

	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Turn stage duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"stage"},
	)

	failuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_failures_total",
			Help:      "Failed turns by stage",
		},
		[]string{"stage"},
	)

	registry.MustRegister(
		turnsTotal,
		turnDuration,
		stageDuration,
		failuresTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:      registry,
		namespace:     namespace,
		TurnsTotal:    turnsTotal,
		TurnDuration:  turnDuration,
		StageDuration: stageDuration,
		FailuresTotal: failuresTotal,
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordTurn records a finished turn. It is meant to be passed to
// assistant.MetricsCollector.OnUpdate.
func (m *Metrics) RecordTurn(t assistant.TurnMetrics) {
	m.TurnsTotal.WithLabelValues(string(t.Source), t.Language, t.Outcome).Inc()
	if t.Outcome == assistant.OutcomeFailed {
		m.FailuresTotal.WithLabelValues(string(t.FailedStage)).Inc()
	}
	if t.Outcome == assistant.OutcomeCompleted {
		m.TurnDuration.WithLabelValues(t.Language).Observe(t.Total.Seconds())
	}

	stages := []struct {
		stage assistant.Stage
		d     float64
	}{
		{assistant.StageCapture, t.Capture.Seconds()},
		{assistant.StageTranslateIn, t.TranslateIn.Seconds()},
		{assistant.StageDialogue, t.Dialogue.Seconds()},
		{assistant.StageTranslateOut, t.TranslateOut.Seconds()},
		{assistant.StageSpeak, t.Speak.Seconds()},
	}
	for _, s := range stages {
		if s.d > 0 {
			m.StageDuration.WithLabelValues(string(s.stage)).Observe(s.d)
		}
	}
}

// WatchDialogue exports the dialogue session counters.
func (m *Metrics) WatchDialogue(stats func() dialogue.Stats) {
	counter := func(name, help string, v func(dialogue.Stats) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "dialogue",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v(stats())) })
	}

	m.registry.MustRegister(
		counter("conversations_total", "Conversations started", func(s dialogue.Stats) int64 { return s.Conversations }),
		counter("restarts_total", "Conversations rebuilt after an auth failure", func(s dialogue.Stats) int64 { return s.Restarts }),
		counter("messages_sent_total", "Messages posted to the agent", func(s dialogue.Stats) int64 { return s.MessagesSent }),
		counter("replies_total", "Agent replies delivered", func(s dialogue.Stats) int64 { return s.RepliesReceived }),
		counter("poll_attempts_total", "Activity poll attempts", func(s dialogue.Stats) int64 { return s.PollAttempts }),
		counter("timeouts_total", "Exchanges that exhausted the poll budget", func(s dialogue.Stats) int64 { return s.Timeouts }),
		counter("errors_total", "Failed dialogue requests", func(s dialogue.Stats) int64 { return s.Errors }),
	)
}

// WatchBridge exports browser audio bridge counters.
func (m *Metrics) WatchBridge(stats func() bridge.Stats) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: "bridge",
			Name:      "connections",
			Help:      "Connected browser audio sockets",
		}, func() float64 { return float64(stats().Connections) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "bridge",
			Name:      "audio_bytes_received_total",
			Help:      "Microphone bytes received from the browser",
		}, func() float64 { return float64(stats().BytesReceived) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "bridge",
			Name:      "messages_sent_total",
			Help:      "Messages sent to the browser",
		}, func() float64 { return float64(stats().MessagesSent) }),
	)
}

// WatchHub exports event hub counters.
func (m *Metrics) WatchHub(stats func() hub.Stats) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: "events",
			Name:      "clients",
			Help:      "Connected event socket clients",
		}, func() float64 { return float64(stats().Clients) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Events dropped because the broadcast queue was full",
		}, func() float64 { return float64(stats().Dropped) }),
	)
}
