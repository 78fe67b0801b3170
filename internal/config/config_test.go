package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/teslashibe/go-interpreter/pkg/lang"
)

func TestDefaultValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Turn.ResumeDelay != 1500*time.Millisecond {
		t.Errorf("ResumeDelay = %v", cfg.Turn.ResumeDelay)
	}
	if cfg.DirectLine.PollAttempts != 20 || cfg.DirectLine.PollInterval != 750*time.Millisecond {
		t.Errorf("poll budget = %d x %v", cfg.DirectLine.PollAttempts, cfg.DirectLine.PollInterval)
	}
	if cfg.WakeWord.Phrase != "hey doctor" {
		t.Errorf("Phrase = %q", cfg.WakeWord.Phrase)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "interpreter.yaml")
	data := `
server:
  port: "9090"
defaults:
  language: ta
  voice_gender: male
  auto_play: false
turn:
  resume_delay: 2s
direct_line:
  secret: from-file
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("Port = %q", cfg.Server.Port)
	}
	if cfg.Defaults.Language != "ta" || cfg.Defaults.VoiceGender != lang.Male || cfg.Defaults.AutoPlay {
		t.Errorf("Defaults = %+v", cfg.Defaults)
	}
	if cfg.Turn.ResumeDelay != 2*time.Second {
		t.Errorf("ResumeDelay = %v", cfg.Turn.ResumeDelay)
	}
	// Unset sections keep their defaults.
	if len(cfg.Languages) != 3 {
		t.Errorf("Languages = %d, want 3", len(cfg.Languages))
	}
	if cfg.DirectLine.PollAttempts != 20 {
		t.Errorf("PollAttempts = %d", cfg.DirectLine.PollAttempts)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SPEECH_KEY":           "sk",
		"TRANSLATOR_REGION":    "centralindia",
		"DIRECT_LINE_SECRET":   "dl",
		"WAKE_WORD_ENABLED":    "false",
		"AUTO_PLAY":            "not-a-bool",
		"DEFAULT_VOICE_GENDER": "MALE",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Speech.Key != "sk" || cfg.Translator.Region != "centralindia" || cfg.DirectLine.Secret != "dl" {
		t.Errorf("credentials not applied: %+v", cfg)
	}
	if cfg.WakeWord.Enabled {
		t.Error("WAKE_WORD_ENABLED=false not applied")
	}
	if !cfg.Defaults.AutoPlay {
		t.Error("invalid AUTO_PLAY should keep the default")
	}
	if cfg.Defaults.VoiceGender != lang.Male {
		t.Errorf("VoiceGender = %q", cfg.Defaults.VoiceGender)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown default language", func(c *Config) { c.Defaults.Language = "fr" }},
		{"bad gender", func(c *Config) { c.Defaults.VoiceGender = "child" }},
		{"http direct line", func(c *Config) { c.DirectLine.Endpoint = "http://example.com" }},
		{"zero poll", func(c *Config) { c.DirectLine.PollAttempts = 0 }},
		{"unknown provider", func(c *Config) { c.Translator.Provider = "deepl" }},
		{"empty phrase", func(c *Config) { c.WakeWord.Phrase = "  " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMissingCredentials(t *testing.T) {
	cfg := Default()
	cfg.Speech.Key = "YOUR_SPEECH_KEY"
	cfg.Translator.Key = "tk"

	missing := cfg.MissingCredentials()
	want := []string{"SPEECH_KEY", "DIRECT_LINE_SECRET"}
	if len(missing) != len(want) {
		t.Fatalf("missing = %v, want %v", missing, want)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Errorf("missing[%d] = %q, want %q", i, missing[i], want[i])
		}
	}

	cfg.Translator.Provider = "google"
	cfg.Translator.Key = ""
	for _, m := range cfg.MissingCredentials() {
		if m == "TRANSLATOR_KEY" {
			t.Error("google provider should not require TRANSLATOR_KEY")
		}
	}
}
