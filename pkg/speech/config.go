package speech

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-interpreter/internal/httpc"
)

// Config holds speech provider configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Credentials
	Key    string
	Region string

	// Endpoint overrides; empty means derive from Region.
	STTEndpoint string
	TTSEndpoint string

	// OutputFormat is the X-Microsoft-OutputFormat for synthesis.
	OutputFormat string

	// Retry configuration
	MaxRetries int
	RetryDelay time.Duration

	HTTPClient httpc.Doer
	Logger     *slog.Logger
}

// Option is a functional option for configuring speech providers.
type Option func(*Config)

// WithKey sets the subscription key.
func WithKey(key string) Option {
	return func(c *Config) {
		c.Key = key
	}
}

// WithRegion sets the service region, e.g. "eastus".
func WithRegion(region string) Option {
	return func(c *Config) {
		c.Region = region
	}
}

// WithEndpoints overrides the recognition and synthesis URLs.
func WithEndpoints(stt, tts string) Option {
	return func(c *Config) {
		c.STTEndpoint = stt
		c.TTSEndpoint = tts
	}
}

// WithRetry configures retry behavior for 429 and 5xx responses.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client httpc.Doer) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithLogger sets the structured logger for the provider.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		OutputFormat: "raw-16khz-16bit-mono-pcm",
		MaxRetries:   2,
		RetryDelay:   200 * time.Millisecond,
		HTTPClient:   httpc.Client,
		Logger:       slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Key == "" {
		return ErrNoKey
	}
	if c.Region == "" && (c.STTEndpoint == "" || c.TTSEndpoint == "") {
		return ErrNoRegion
	}
	return nil
}
