package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/teslashibe/go-interpreter/pkg/assistant"
	"github.com/teslashibe/go-interpreter/pkg/bridge"
	"github.com/teslashibe/go-interpreter/pkg/dialogue"
)

func TestRecordTurn(t *testing.T) {
	m := New("")

	m.RecordTurn(assistant.TurnMetrics{
		Source:   assistant.SourceWakeWord,
		Language: "ta",
		Outcome:  assistant.OutcomeCompleted,
		Capture:  2 * time.Second,
		Dialogue: 900 * time.Millisecond,
		Total:    4 * time.Second,
	})
	m.RecordTurn(assistant.TurnMetrics{
		Source:      assistant.SourceManual,
		Language:    "ta",
		Outcome:     assistant.OutcomeFailed,
		FailedStage: assistant.StageDialogue,
	})

	if got := testutil.ToFloat64(m.TurnsTotal.WithLabelValues("wakeword", "ta", "completed")); got != 1 {
		t.Errorf("completed turns = %v", got)
	}
	if got := testutil.ToFloat64(m.FailuresTotal.WithLabelValues("dialogue")); got != 1 {
		t.Errorf("dialogue failures = %v", got)
	}
	// Only stages that ran are observed.
	if n := testutil.CollectAndCount(m.StageDuration); n != 2 {
		t.Errorf("stage series = %d, want 2", n)
	}
}

func TestWatchers(t *testing.T) {
	m := New("test")
	m.WatchDialogue(func() dialogue.Stats {
		return dialogue.Stats{Conversations: 3, Restarts: 1, Timeouts: 2}
	})
	m.WatchBridge(func() bridge.Stats {
		return bridge.Stats{Connections: 1, BytesReceived: 640}
	})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		"test_dialogue_conversations_total 3",
		"test_dialogue_restarts_total 1",
		"test_dialogue_timeouts_total 2",
		"test_bridge_connections 1",
		"test_bridge_audio_bytes_received_total 640",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
