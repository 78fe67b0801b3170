package translate

import (
	"log/slog"

	"github.com/teslashibe/go-interpreter/internal/httpc"
)

// Config holds translation provider configuration.
type Config struct {
	// Provider is "azure" or "google"; used by New.
	Provider string

	Key      string
	Region   string
	Endpoint string

	HTTPClient httpc.Doer
	Logger     *slog.Logger
}

// Option is a functional option for configuring providers.
type Option func(*Config)

// WithProvider selects the provider used by New.
func WithProvider(name string) Option {
	return func(c *Config) {
		c.Provider = name
	}
}

// WithKey sets the subscription or API key.
func WithKey(key string) Option {
	return func(c *Config) {
		c.Key = key
	}
}

// WithRegion sets the Azure resource region. "global" sends no region header.
func WithRegion(region string) Option {
	return func(c *Config) {
		c.Region = region
	}
}

// WithEndpoint overrides the service base URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Endpoint = endpoint
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client httpc.Doer) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the Azure global endpoint configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider:   "azure",
		Region:     "global",
		Endpoint:   azureDefaultEndpoint,
		HTTPClient: httpc.Client,
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
