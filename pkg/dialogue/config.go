package dialogue

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/teslashibe/go-interpreter/internal/httpc"
)

const (
	// DefaultEndpoint is the public Direct Line v3 endpoint.
	DefaultEndpoint = "https://directline.botframework.com/v3/directline"

	directLinePath = "/v3/directline"
)

// Config holds Direct Line client configuration.
type Config struct {
	// Secret is the long-lived Web channel secret exchanged for tokens.
	Secret string

	// Endpoint is the Direct Line base URL. The v3 path is appended if absent.
	Endpoint string

	// UserID identifies the local participant. Generated when empty.
	UserID string

	// PollAttempts bounds how many times the activity stream is read per message.
	PollAttempts int

	// PollInterval is the wait before each poll.
	PollInterval time.Duration

	HTTPClient httpc.Doer
	Logger     *slog.Logger
}

// DefaultConfig returns a Config with the public endpoint and a 20x750ms poll budget.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:     DefaultEndpoint,
		PollAttempts: 20,
		PollInterval: 750 * time.Millisecond,
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

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Secret) == "" {
		return ErrMissingSecret
	}
	if _, err := NormalizeEndpoint(c.Endpoint); err != nil {
		return err
	}
	if c.PollAttempts < 1 || c.PollInterval < 0 {
		return ErrInvalidPolling
	}
	return nil
}

// NormalizeEndpoint trims trailing slashes, appends the v3 path if absent and
// requires https.
func NormalizeEndpoint(raw string) (string, error) {
	s := strings.TrimRight(strings.TrimSpace(raw), "/")
	if s == "" {
		s = strings.TrimSuffix(DefaultEndpoint, directLinePath)
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", ErrInvalidEndpoint
	}
	if u.Scheme != "https" {
		return "", ErrInsecureEndpoint
	}
	if !strings.Contains(s, directLinePath) {
		s += directLinePath
	}
	return s, nil
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithSecret sets the Direct Line secret.
func WithSecret(secret string) Option {
	return func(c *Config) {
		c.Secret = strings.TrimSpace(secret)
	}
}

// WithEndpoint sets the Direct Line endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Endpoint = endpoint
	}
}

// WithUserID sets the local participant ID.
func WithUserID(id string) Option {
	return func(c *Config) {
		c.UserID = id
	}
}

// WithPolling sets the poll budget.
func WithPolling(attempts int, interval time.Duration) Option {
	return func(c *Config) {
		c.PollAttempts = attempts
		c.PollInterval = interval
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
