// Package config loads interpreter configuration from YAML, .env files and
// the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-interpreter/pkg/lang"
)

// Config is the full application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Speech     SpeechConfig     `yaml:"speech"`
	Translator TranslatorConfig `yaml:"translator"`
	DirectLine DirectLineConfig `yaml:"direct_line"`
	WakeWord   WakeWordConfig   `yaml:"wake_word"`
	Defaults   DefaultsConfig   `yaml:"defaults"`
	Turn       TurnConfig       `yaml:"turn"`
	Languages  lang.Table       `yaml:"languages"`
}

type ServerConfig struct {
	Port      string `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SpeechConfig struct {
	Key    string `yaml:"key"`
	Region string `yaml:"region"`
	// Endpoints override the region-derived hosts.
	STTEndpoint string `yaml:"stt_endpoint"`
	TTSEndpoint string `yaml:"tts_endpoint"`
	// SampleRate is the rate of PCM frames the browser streams.
	SampleRate int `yaml:"sample_rate"`
}

type TranslatorConfig struct {
	Provider  string `yaml:"provider"` // "azure" or "google"
	Key       string `yaml:"key"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	GoogleKey string `yaml:"google_key"`
}

type DirectLineConfig struct {
	Secret       string        `yaml:"secret"`
	Endpoint     string        `yaml:"endpoint"`
	PollAttempts int           `yaml:"poll_attempts"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type WakeWordConfig struct {
	Phrase   string   `yaml:"phrase"`
	Enabled  bool     `yaml:"enabled"`
	Locale   string   `yaml:"locale"`
	Variants []string `yaml:"variants"`
}

type DefaultsConfig struct {
	Language    string      `yaml:"language"`
	VoiceGender lang.Gender `yaml:"voice_gender"`
	AutoPlay    bool        `yaml:"auto_play"`
	// WakeWordOn is the initial state of the user's wake word toggle.
	WakeWordOn bool `yaml:"wake_word_on"`
}

type TurnConfig struct {
	ResumeDelay       time.Duration `yaml:"resume_delay"`
	PermissionTimeout time.Duration `yaml:"permission_timeout"`
}

// Default returns a configuration with every non-secret field populated.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      "8080",
			StaticDir: "./web",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Speech: SpeechConfig{
			Region:     "eastus",
			SampleRate: 16000,
		},
		Translator: TranslatorConfig{
			Provider: "azure",
			Region:   "global",
			Endpoint: "https://api.cognitive.microsofttranslator.com/",
		},
		DirectLine: DirectLineConfig{
			Endpoint:     "https://directline.botframework.com/v3/directline",
			PollAttempts: 20,
			PollInterval: 750 * time.Millisecond,
		},
		WakeWord: WakeWordConfig{
			Phrase:  "hey doctor",
			Enabled: true,
			Locale:  "en-IN",
		},
		Defaults: DefaultsConfig{
			Language:    lang.Pivot,
			VoiceGender: lang.Female,
			AutoPlay:    true,
		},
		Turn: TurnConfig{
			ResumeDelay:       1500 * time.Millisecond,
			PermissionTimeout: 30 * time.Second,
		},
		Languages: lang.Default(),
	}
}

// Load reads path (if non-empty), then .env, then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables looked up with getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	str := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	boolean := func(dst *bool, key string) {
		if v := getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str(&c.Server.Port, "PORT")
	str(&c.Logging.Level, "LOG_LEVEL")
	str(&c.Logging.Format, "LOG_FORMAT")

	str(&c.Speech.Key, "SPEECH_KEY")
	str(&c.Speech.Region, "SPEECH_REGION")

	str(&c.Translator.Provider, "TRANSLATOR_PROVIDER")
	str(&c.Translator.Key, "TRANSLATOR_KEY")
	str(&c.Translator.Region, "TRANSLATOR_REGION")
	str(&c.Translator.Endpoint, "TRANSLATOR_ENDPOINT")
	str(&c.Translator.GoogleKey, "GOOGLE_TRANSLATE_KEY")

	str(&c.DirectLine.Secret, "DIRECT_LINE_SECRET")
	str(&c.DirectLine.Endpoint, "DIRECT_LINE_ENDPOINT")

	str(&c.WakeWord.Phrase, "WAKE_WORD")
	boolean(&c.WakeWord.Enabled, "WAKE_WORD_ENABLED")

	str(&c.Defaults.Language, "DEFAULT_LANGUAGE")
	if v := getenv("DEFAULT_VOICE_GENDER"); v != "" {
		c.Defaults.VoiceGender = lang.Gender(strings.ToLower(v))
	}
	boolean(&c.Defaults.AutoPlay, "AUTO_PLAY")
}

// Validate checks structural problems. Missing credentials are not errors;
// see MissingCredentials.
func (c *Config) Validate() error {
	if err := c.Languages.Validate(); err != nil {
		return err
	}
	if !c.Languages.Supported(c.Defaults.Language) {
		return fmt.Errorf("config: default language %q not in language table", c.Defaults.Language)
	}
	if _, err := lang.ParseGender(string(c.Defaults.VoiceGender)); err != nil {
		return err
	}
	if !strings.HasPrefix(c.DirectLine.Endpoint, "https://") {
		return fmt.Errorf("config: direct line endpoint must use https: %q", c.DirectLine.Endpoint)
	}
	if c.DirectLine.PollAttempts <= 0 || c.DirectLine.PollInterval <= 0 {
		return errors.New("config: direct line poll budget must be positive")
	}
	switch c.Translator.Provider {
	case "azure", "google":
	default:
		return fmt.Errorf("config: unknown translator provider %q", c.Translator.Provider)
	}
	if strings.TrimSpace(c.WakeWord.Phrase) == "" {
		return errors.New("config: wake word phrase required")
	}
	return nil
}

// MissingCredentials lists credentials that are absent or still placeholders.
func (c *Config) MissingCredentials() []string {
	var missing []string
	check := func(name, v string) {
		if v == "" || strings.Contains(v, "YOUR_") {
			missing = append(missing, name)
		}
	}
	check("SPEECH_KEY", c.Speech.Key)
	// Google falls back to Application Default Credentials.
	if c.Translator.Provider != "google" {
		check("TRANSLATOR_KEY", c.Translator.Key)
	}
	check("DIRECT_LINE_SECRET", c.DirectLine.Secret)
	return missing
}

// LogMissing logs every missing credential as a warning.
func (c *Config) LogMissing(logger *slog.Logger) bool {
	missing := c.MissingCredentials()
	for _, name := range missing {
		logger.Warn("credential not configured", "name", name)
	}
	return len(missing) == 0
}
