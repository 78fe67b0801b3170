package assistant

import (
	"sync"
	"time"
)

// Turn outcomes recorded in TurnMetrics.
const (
	OutcomeCompleted        = "completed"
	OutcomeEmpty            = "empty"
	OutcomePermissionDenied = "permission_denied"
	OutcomeFailed           = "failed"
)

// TurnMetrics tracks latency at each stage of one turn.
type TurnMetrics struct {
	ID       string
	Source   TriggerSource
	Language string
	Started  time.Time

	Capture      time.Duration
	TranslateIn  time.Duration
	Dialogue     time.Duration
	TranslateOut time.Duration
	Speak        time.Duration
	Total        time.Duration

	// Outcome is one of the Outcome constants; empty while the turn runs.
	Outcome string
	// FailedStage is set when Outcome is OutcomeFailed.
	FailedStage Stage
}

// MetricsCollector collects stage latencies across turns.
// It is goroutine-safe.
type MetricsCollector struct {
	mu      sync.Mutex
	current TurnMetrics
	history []TurnMetrics
	limit   int

	onUpdate func(TurnMetrics)
}

// NewMetricsCollector creates a collector keeping the last 100 turns.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		history: make([]TurnMetrics, 0, 100),
		limit:   100,
	}
}

// OnUpdate sets a callback that fires when a turn ends.
func (m *MetricsCollector) OnUpdate(fn func(TurnMetrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// BeginTurn resets the current record.
func (m *MetricsCollector) BeginTurn(id string, src TriggerSource, language string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = TurnMetrics{ID: id, Source: src, Language: language, Started: time.Now()}
}

// Observe records how long stage took.
func (m *MetricsCollector) Observe(stage Stage, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch stage {
	case StageCapture:
		m.current.Capture = d
	case StageTranslateIn:
		m.current.TranslateIn = d
	case StageDialogue:
		m.current.Dialogue = d
	case StageTranslateOut:
		m.current.TranslateOut = d
	case StageSpeak:
		m.current.Speak = d
	}
}

// EndTurn archives the current record with its outcome.
func (m *MetricsCollector) EndTurn(outcome string, failed Stage) TurnMetrics {
	m.mu.Lock()
	m.current.Outcome = outcome
	m.current.FailedStage = failed
	if !m.current.Started.IsZero() {
		m.current.Total = time.Since(m.current.Started)
	}
	done := m.current
	m.history = append(m.history, done)
	if len(m.history) > m.limit {
		m.history = m.history[1:]
	}
	fn := m.onUpdate
	m.mu.Unlock()

	if fn != nil {
		fn(done)
	}
	return done
}

// Current returns the in-flight or last turn.
func (m *MetricsCollector) Current() TurnMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// History returns archived turns, oldest first.
func (m *MetricsCollector) History() []TurnMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TurnMetrics(nil), m.history...)
}

// Average returns mean stage latencies over completed turns.
func (m *MetricsCollector) Average() TurnMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	var avg TurnMetrics
	n := 0
	for _, h := range m.history {
		if h.Outcome != OutcomeCompleted {
			continue
		}
		avg.Capture += h.Capture
		avg.TranslateIn += h.TranslateIn
		avg.Dialogue += h.Dialogue
		avg.TranslateOut += h.TranslateOut
		avg.Speak += h.Speak
		avg.Total += h.Total
		n++
	}
	if n == 0 {
		return TurnMetrics{}
	}

	d := time.Duration(n)
	avg.Capture /= d
	avg.TranslateIn /= d
	avg.Dialogue /= d
	avg.TranslateOut /= d
	avg.Speak /= d
	avg.Total /= d
	return avg
}

// FormatLatency returns a one-line latency summary.
func (t *TurnMetrics) FormatLatency() string {
	return formatDuration(t.Capture) + " capture | " +
		formatDuration(t.TranslateIn) + " in | " +
		formatDuration(t.Dialogue) + " agent | " +
		formatDuration(t.TranslateOut) + " out | " +
		formatDuration(t.Speak) + " speak | " +
		formatDuration(t.Total) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
