package assistant

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-interpreter/pkg/lang"
)

// Config holds orchestrator preferences and timing.
type Config struct {
	// Languages is the supported language table.
	Languages lang.Table

	// Language is the initial patient language.
	Language string

	// VoiceGender is the initial synthesis voice.
	VoiceGender lang.Gender

	// AutoPlay speaks replies as soon as they arrive.
	AutoPlay bool

	// WakeWordEnabled is the initial wake-word toggle.
	WakeWordEnabled bool

	// ResumeDelay is the wait before wake-word listening resumes after a turn.
	ResumeDelay time.Duration

	// ReplayHistory bounds how many bot replies can be replayed.
	ReplayHistory int

	Logger *slog.Logger
}

// DefaultConfig returns English, female voice, auto-play and wake word on.
func DefaultConfig() *Config {
	return &Config{
		Languages:       lang.Default(),
		Language:        lang.Pivot,
		VoiceGender:     lang.Female,
		AutoPlay:        true,
		WakeWordEnabled: true,
		ResumeDelay:     1500 * time.Millisecond,
		ReplayHistory:   200,
		Logger:          slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the initial preferences against the language table.
func (c *Config) Validate() error {
	if err := c.Languages.Validate(); err != nil {
		return err
	}
	if !c.Languages.Supported(c.Language) {
		return ErrUnsupportedLanguage
	}
	if c.VoiceGender != lang.Female && c.VoiceGender != lang.Male {
		return ErrUnknownGender
	}
	return nil
}

// Option is a functional option for configuring the orchestrator.
type Option func(*Config)

// WithLanguages sets the language table.
func WithLanguages(t lang.Table) Option {
	return func(c *Config) {
		c.Languages = t
	}
}

// WithLanguage sets the initial language.
func WithLanguage(code string) Option {
	return func(c *Config) {
		c.Language = code
	}
}

// WithVoiceGender sets the initial voice.
func WithVoiceGender(g lang.Gender) Option {
	return func(c *Config) {
		c.VoiceGender = g
	}
}

// WithAutoPlay sets whether replies are spoken automatically.
func WithAutoPlay(on bool) Option {
	return func(c *Config) {
		c.AutoPlay = on
	}
}

// WithWakeWord sets the initial wake-word toggle.
func WithWakeWord(on bool) Option {
	return func(c *Config) {
		c.WakeWordEnabled = on
	}
}

// WithResumeDelay sets the post-turn wake-word resume delay.
func WithResumeDelay(d time.Duration) Option {
	return func(c *Config) {
		c.ResumeDelay = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
