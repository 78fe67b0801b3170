package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/teslashibe/go-interpreter/internal/config"
	"github.com/teslashibe/go-interpreter/pkg/assistant"
	"github.com/teslashibe/go-interpreter/pkg/dialogue"
	"github.com/teslashibe/go-interpreter/pkg/speech"
	"github.com/teslashibe/go-interpreter/pkg/translate"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Port = "0"
	cfg.Server.StaticDir = ""
	return cfg
}

func TestNew_WithoutCredentials(t *testing.T) {
	a, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Shutdown()

	if a.directLine != nil {
		t.Error("direct line built without a secret")
	}
	if _, ok := a.translator.(unavailable); !ok {
		t.Errorf("translator = %T, want stand-in", a.translator)
	}
	if a.Orchestrator() == nil || a.Server() == nil {
		t.Fatal("components not wired")
	}
}

func TestNew_WakeWordAcceptsDefaultVariants(t *testing.T) {
	a, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Shutdown()

	for _, heard := range []string{"Hey Doctor!", "Hi doctor.", "hey doc", "Okay doctor", "hello doctor"} {
		if !a.wake.Matcher().Match(heard) {
			t.Errorf("Match(%q) = false", heard)
		}
	}
	if a.wake.Matcher().Match("the doctor is busy") {
		t.Error("matched unrelated speech")
	}
}

func TestNew_WakeWordCustomVariants(t *testing.T) {
	cfg := testConfig()
	cfg.WakeWord.Variants = []string{"hello nurse"}
	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Shutdown()

	if !a.wake.Matcher().Match("Hello nurse") || !a.wake.Matcher().Match("hey doctor") {
		t.Error("configured phrase or variant not accepted")
	}
	if a.wake.Matcher().Match("hi doc") {
		t.Error("default variant accepted after override")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Defaults.Language = "fr"
	if _, err := New(cfg); err == nil {
		t.Error("expected error for unsupported default language")
	}
}

func TestNew_WithCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.Speech.Key = "speech-key"
	cfg.Translator.Key = "translator-key"
	cfg.DirectLine.Secret = "secret"

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Shutdown()

	if a.directLine == nil {
		t.Error("direct line not built")
	}
	if _, ok := a.translator.(*translate.Azure); !ok {
		t.Errorf("translator = %T, want *translate.Azure", a.translator)
	}
}

func TestInit_ConnectionFailureIsNotFatal(t *testing.T) {
	a, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Shutdown()

	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	resp, err := a.Server().App().Test(httptest.NewRequest("GET", "/api/status", nil))
	if err != nil {
		t.Fatal(err)
	}
	var status struct {
		Connected  bool   `json:"connected"`
		Connection string `json:"connection"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Connected || status.Connection != assistant.MsgConnectionFailed {
		t.Errorf("status = %+v", status)
	}
}

func TestEnglishTurnWithoutTranslator(t *testing.T) {
	a, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Shutdown()

	// English turns never call the translator, so the stand-in passes text through.
	got, err := a.translator.Translate(context.Background(), "hello", "en", "en")
	if err != nil || got != "hello" {
		t.Errorf("Translate(en, en) = %q, %v", got, err)
	}
	if _, err := a.translator.Translate(context.Background(), "hello", "en", "ta"); !errors.Is(err, translate.ErrNoKey) {
		t.Errorf("Translate(en, ta) error = %v, want ErrNoKey", err)
	}
}

func TestUnavailable(t *testing.T) {
	u := unavailable{err: dialogue.ErrMissingSecret}

	if err := u.StartConversation(context.Background()); !errors.Is(err, dialogue.ErrMissingSecret) {
		t.Errorf("StartConversation() = %v", err)
	}
	if _, err := u.SendMessage(context.Background(), "hi"); !errors.Is(err, dialogue.ErrMissingSecret) {
		t.Errorf("SendMessage() = %v", err)
	}
	if u.IsConnected() {
		t.Error("IsConnected() = true")
	}

	s := unavailable{err: speech.ErrNoKey}
	if _, err := s.Recognize(context.Background(), nil, 16000, "en-IN"); !errors.Is(err, speech.ErrNoKey) {
		t.Errorf("Recognize() = %v", err)
	}
	if _, err := s.Synthesize(context.Background(), "hi", "voice", "en-IN"); !errors.Is(err, speech.ErrNoKey) {
		t.Errorf("Synthesize() = %v", err)
	}
}

func TestRunAndShutdown(t *testing.T) {
	a, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if err := a.Shutdown(); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if err := a.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}
