// Package wakeword listens continuously for a spoken trigger phrase and
// fires a callback once per listening session.
//
// The listener shares the microphone with conversation turns through an
// audioio.DeviceLock and only listens while it holds the lock as
// audioio.OwnerWakeWord.
package wakeword

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-interpreter/pkg/audioio"
	"github.com/teslashibe/go-interpreter/pkg/speech"
)

// Recognizer opens continuous recognition sessions.
type Recognizer interface {
	HasPermission() bool
	StartContinuous(ctx context.Context, locale string) (speech.Session, error)
}

// Config holds listener configuration.
type Config struct {
	// Phrase is the trigger phrase.
	Phrase string

	// Variants are accepted alternatives to Phrase.
	Variants []string

	// Locale is the recognition locale.
	Locale string

	// Enabled gates Start.
	Enabled bool

	Logger *slog.Logger
}

// DefaultConfig returns an enabled "hey doctor" listener in en-IN.
func DefaultConfig() *Config {
	return &Config{
		Phrase:   "hey doctor",
		Variants: DefaultVariants,
		Locale:   "en-IN",
		Enabled:  true,
		Logger:   slog.Default(),
	}
}

// Option is a functional option for configuring the listener.
type Option func(*Config)

// WithPhrase sets the trigger phrase.
func WithPhrase(phrase string) Option {
	return func(c *Config) {
		c.Phrase = phrase
	}
}

// WithVariants replaces the accepted variants. An empty list keeps the
// defaults.
func WithVariants(variants ...string) Option {
	return func(c *Config) {
		if len(variants) > 0 {
			c.Variants = variants
		}
	}
}

// WithLocale sets the recognition locale.
func WithLocale(locale string) Option {
	return func(c *Config) {
		c.Locale = locale
	}
}

// WithEnabled sets whether Start may open a session.
func WithEnabled(enabled bool) Option {
	return func(c *Config) {
		c.Enabled = enabled
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// Listener is the wake-word listener.
type Listener struct {
	rec     Recognizer
	lock    *audioio.DeviceLock
	matcher *Matcher
	locale  string
	logger  *slog.Logger

	mu       sync.Mutex
	enabled  bool
	active   bool
	latched  bool
	gen      uint64
	session  speech.Session
	onDetect func()

	detections atomic.Int64
}

// New creates a listener sharing lock with conversation turns.
func New(rec Recognizer, lock *audioio.DeviceLock, opts ...Option) *Listener {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Listener{
		rec:     rec,
		lock:    lock,
		matcher: NewMatcher(cfg.Phrase, cfg.Variants...),
		locale:  cfg.Locale,
		logger:  cfg.Logger.With("component", "wakeword"),
		enabled: cfg.Enabled,
	}
}

// OnDetect sets the detection callback. It runs on its own goroutine after
// the session has stopped and the device lock is released.
func (l *Listener) OnDetect(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onDetect = fn
}

// SetEnabled toggles the feature. Disabling stops an active session.
func (l *Listener) SetEnabled(enabled bool) {
	l.mu.Lock()
	l.enabled = enabled
	l.mu.Unlock()
	if !enabled {
		l.Stop()
	}
}

// Enabled reports whether the feature is on.
func (l *Listener) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// Active reports whether a session is open.
func (l *Listener) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Triggered reports whether the current or last session fired.
func (l *Listener) Triggered() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latched
}

// Detections returns the number of callbacks fired.
func (l *Listener) Detections() int64 {
	return l.detections.Load()
}

// Matcher returns the phrase matcher.
func (l *Listener) Matcher() *Matcher {
	return l.matcher
}

// Start opens a continuous session. It does nothing when disabled, already
// active, without microphone permission, or when the device is held by
// someone else. It never prompts for permission.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || l.active {
		return nil
	}
	if !l.rec.HasPermission() {
		l.logger.Debug("not starting: no microphone permission")
		return nil
	}
	if !l.lock.TryAcquire(audioio.OwnerWakeWord) {
		l.logger.Debug("not starting: microphone busy", "owner", l.lock.Owner())
		return nil
	}

	sess, err := l.rec.StartContinuous(ctx, l.locale)
	if err != nil {
		l.lock.Release(audioio.OwnerWakeWord)
		l.logger.Warn("failed to start wake word listening", "error", err)
		return err
	}

	l.gen++
	l.session = sess
	l.active = true
	l.latched = false

	go l.watch(sess, l.gen)

	l.logger.Info("listening for wake word", "phrase", l.matcher.Phrase(), "locale", l.locale)
	return nil
}

// Stop closes the session and releases the device. Safe to call when idle.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopLocked(l.gen) {
		l.logger.Debug("wake word listening stopped")
	}
}

// stopLocked ends session gen if it is still current. Caller holds mu.
func (l *Listener) stopLocked(gen uint64) bool {
	if !l.active || l.gen != gen {
		return false
	}
	sess := l.session
	l.session = nil
	l.active = false
	l.gen++

	if err := sess.Stop(); err != nil {
		l.logger.Debug("session stop", "error", err)
	}
	l.lock.Release(audioio.OwnerWakeWord)
	return true
}

func (l *Listener) watch(sess speech.Session, gen uint64) {
	for ev := range sess.Events() {
		switch ev.Outcome {
		case speech.OutcomeRecognized:
			l.logger.Debug("heard", "text", ev.Text)
			if l.matcher.Match(ev.Text) && l.detect(gen) {
				return
			}
		case speech.OutcomeFailed:
			l.logger.Warn("wake word recognition canceled", "error", ev.Err)
			l.mu.Lock()
			l.stopLocked(gen)
			l.mu.Unlock()
			return
		}
	}

	// The session ended on its own.
	l.mu.Lock()
	l.stopLocked(gen)
	l.mu.Unlock()
}

// detect latches session gen and schedules the callback. It reports false
// when the session is no longer current.
func (l *Listener) detect(gen uint64) bool {
	l.mu.Lock()
	if l.latched || !l.stopLocked(gen) {
		l.mu.Unlock()
		return false
	}
	l.latched = true
	fn := l.onDetect
	l.mu.Unlock()

	l.detections.Add(1)
	l.logger.Info("wake word detected")
	if fn != nil {
		go fn()
	}
	return true
}
