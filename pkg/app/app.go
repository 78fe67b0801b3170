// Package app wires the interpreter's components together and runs them.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-interpreter/internal/config"
	"github.com/teslashibe/go-interpreter/internal/log"
	"github.com/teslashibe/go-interpreter/internal/telemetry"
	"github.com/teslashibe/go-interpreter/pkg/assistant"
	"github.com/teslashibe/go-interpreter/pkg/audioio"
	"github.com/teslashibe/go-interpreter/pkg/bridge"
	"github.com/teslashibe/go-interpreter/pkg/dialogue"
	"github.com/teslashibe/go-interpreter/pkg/speech"
	"github.com/teslashibe/go-interpreter/pkg/translate"
	"github.com/teslashibe/go-interpreter/pkg/wakeword"
	"github.com/teslashibe/go-interpreter/pkg/web"
)

// TokenRefreshInterval is how often the Direct Line token is refreshed.
// Tokens expire after 30 minutes.
const TokenRefreshInterval = 15 * time.Minute

// App is the interpreter process. It owns every component and their
// lifecycle.
type App struct {
	config *config.Config
	logger *slog.Logger

	// Audio plumbing between the browser and the speech service
	source *audioio.BrowserSource
	sink   *audioio.BrowserSink
	perms  *audioio.Permissions
	lock   *audioio.DeviceLock
	bridge *bridge.Bridge

	// Remote collaborators
	transcriber *speech.Transcriber
	translator  translate.Translator
	agent       dialogue.Agent
	directLine  *dialogue.DirectLine

	wake         *wakeword.Listener
	orchestrator *assistant.Orchestrator
	server       *web.Server
	metrics      *telemetry.Metrics

	shutdownOnce sync.Once
}

// New builds every component from cfg. Missing credentials are logged and
// replaced by stand-ins that fail when used, so the UI still comes up.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		config: cfg,
		logger: log.Component("app"),
		lock:   &audioio.DeviceLock{},
	}
	cfg.LogMissing(a.logger)

	audioCfg := audioio.DefaultConfig()
	if cfg.Speech.SampleRate > 0 {
		audioCfg.SampleRate = cfg.Speech.SampleRate
	}
	if err := audioCfg.Validate(); err != nil {
		return nil, fmt.Errorf("audio config: %w", err)
	}
	a.source = audioio.NewBrowserSource(audioCfg, log.Component("audio.source"))
	a.sink = audioio.NewBrowserSink(audioCfg, log.Component("audio.sink"))
	a.perms = audioio.NewPermissions(cfg.Turn.PermissionTimeout)
	a.bridge = bridge.New(a.source, a.sink, a.perms, log.Component("bridge"))

	if err := a.initSpeech(); err != nil {
		return nil, fmt.Errorf("speech init: %w", err)
	}
	a.initTranslator()
	a.initDialogue()

	wakeOpts := []wakeword.Option{
		wakeword.WithPhrase(cfg.WakeWord.Phrase),
		wakeword.WithLocale(cfg.WakeWord.Locale),
		wakeword.WithLogger(log.L()),
	}
	if len(cfg.WakeWord.Variants) > 0 {
		wakeOpts = append(wakeOpts, wakeword.WithVariants(cfg.WakeWord.Variants...))
	}
	a.wake = wakeword.New(a.transcriber, a.lock, wakeOpts...)

	a.metrics = telemetry.New(telemetry.DefaultNamespace)
	a.server = web.NewServer(
		web.WithStaticDir(cfg.Server.StaticDir),
		web.WithLanguages(cfg.Languages),
		web.WithTranslator(a.translator),
		web.WithMetrics(a.metrics.Handler()),
		web.WithRoutes(a.bridge),
		web.WithLogger(log.L()),
	)

	deps := assistant.Deps{
		Transcriber: a.transcriber,
		Translator:  a.translator,
		Agent:       a.agent,
		Lock:        a.lock,
		Presenter:   a.server,
	}
	if cfg.WakeWord.Enabled {
		deps.WakeWord = a.wake
	}
	orch, err := assistant.New(deps,
		assistant.WithLanguages(cfg.Languages),
		assistant.WithLanguage(cfg.Defaults.Language),
		assistant.WithVoiceGender(cfg.Defaults.VoiceGender),
		assistant.WithAutoPlay(cfg.Defaults.AutoPlay),
		assistant.WithWakeWord(cfg.WakeWord.Enabled && cfg.Defaults.WakeWordOn),
		assistant.WithResumeDelay(cfg.Turn.ResumeDelay),
		assistant.WithLogger(log.L()),
	)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	a.orchestrator = orch
	a.server.SetController(orch)
	a.bridge.OnVisibility(func(visible bool) {
		if visible {
			orch.Resume()
		} else {
			orch.Suspend()
		}
	})

	a.wireTelemetry()
	return a, nil
}

func (a *App) initSpeech() error {
	var (
		rec   speech.Recognizer
		synth speech.Synthesizer
	)
	az, err := speech.NewAzure(
		speech.WithKey(a.config.Speech.Key),
		speech.WithRegion(a.config.Speech.Region),
		speech.WithEndpoints(a.config.Speech.STTEndpoint, a.config.Speech.TTSEndpoint),
		speech.WithLogger(log.L()),
	)
	if err != nil {
		a.logger.Warn("speech service unavailable", "error", err)
		u := unavailable{err: err}
		rec, synth = u, u
	} else {
		rec, synth = az, az
	}

	t, err := speech.NewTranscriber(speech.TranscriberConfig{
		Recognizer:  rec,
		Synthesizer: synth,
		Source:      a.source,
		Sink:        a.sink,
		Permissions: a.perms,
		Languages:   a.config.Languages,
		VoiceGender: a.config.Defaults.VoiceGender,
		Logger:      log.L(),
	})
	if err != nil {
		return err
	}
	a.transcriber = t
	return nil
}

func (a *App) initTranslator() {
	tc := a.config.Translator
	opts := []translate.Option{
		translate.WithProvider(tc.Provider),
		translate.WithLogger(log.L()),
	}
	if tc.Provider == "google" {
		opts = append(opts, translate.WithKey(tc.GoogleKey))
	} else {
		opts = append(opts,
			translate.WithKey(tc.Key),
			translate.WithRegion(tc.Region),
			translate.WithEndpoint(tc.Endpoint),
		)
	}

	t, err := translate.New(context.Background(), opts...)
	if err != nil {
		a.logger.Warn("translator unavailable", "provider", tc.Provider, "error", err)
		a.translator = unavailable{err: err}
		return
	}
	a.translator = t
}

func (a *App) initDialogue() {
	dc := a.config.DirectLine
	dl, err := dialogue.New(
		dialogue.WithSecret(dc.Secret),
		dialogue.WithEndpoint(dc.Endpoint),
		dialogue.WithPolling(dc.PollAttempts, dc.PollInterval),
		dialogue.WithLogger(log.L()),
	)
	if err != nil {
		a.logger.Warn("direct line unavailable", "error", err)
		a.agent = unavailable{err: err}
		return
	}
	a.directLine = dl
	a.agent = dl
}

func (a *App) wireTelemetry() {
	a.orchestrator.Metrics().OnUpdate(a.metrics.RecordTurn)
	a.metrics.WatchBridge(a.bridge.Stats)
	a.metrics.WatchHub(a.server.Events().Stats)
	if a.directLine != nil {
		a.metrics.WatchDialogue(a.directLine.Stats)
	}
}

// Orchestrator returns the turn orchestrator.
func (a *App) Orchestrator() *assistant.Orchestrator {
	return a.orchestrator
}

// Server returns the web server.
func (a *App) Server() *web.Server {
	return a.server
}

// Init connects the dialogue session. A failed connection only flips the
// connectivity indicator; the first turn retries it.
func (a *App) Init(ctx context.Context) error {
	if err := a.orchestrator.Connect(ctx); err != nil {
		a.logger.Warn("initial dialogue connection failed", "error", err)
	}
	return nil
}

// Run serves HTTP and runs the orchestrator until ctx is cancelled or the
// listener fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		addr := ":" + a.config.Server.Port
		errc <- a.server.Start(ctx, addr)
	}()

	if a.directLine != nil {
		go a.directLine.RefreshLoop(ctx, TokenRefreshInterval)
	}
	go a.orchestrator.Run(ctx)

	a.logger.Info("interpreter running",
		"port", a.config.Server.Port,
		"language", a.config.Defaults.Language,
		"wake_word", a.config.WakeWord.Enabled,
	)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	}
}

// Shutdown stops the wake word, ends the conversation and closes the
// server. Safe to call more than once.
func (a *App) Shutdown() error {
	var err error
	a.shutdownOnce.Do(func() {
		a.logger.Info("shutting down")
		a.orchestrator.Suspend()
		a.wake.Stop()
		a.agent.EndConversation()
		a.bridge.Close()
		err = a.server.Shutdown()
	})
	return err
}

// unavailable stands in for a collaborator whose credentials are missing.
// Every call fails with the construction error.
type unavailable struct {
	err error
}

var (
	_ speech.Recognizer    = unavailable{}
	_ speech.Synthesizer   = unavailable{}
	_ translate.Translator = unavailable{}
	_ dialogue.Agent       = unavailable{}
)

func (u unavailable) Recognize(context.Context, []byte, int, string) (speech.Result, error) {
	return speech.Result{}, u.err
}

func (u unavailable) Synthesize(context.Context, string, string, string) (*speech.AudioResult, error) {
	return nil, u.err
}

// Translate still passes text through when no translation is needed.
func (u unavailable) Translate(_ context.Context, text, from, to string) (string, error) {
	if from == to || text == "" {
		return text, nil
	}
	return "", u.err
}

func (u unavailable) Detect(context.Context, string) (string, error) {
	return "", u.err
}

func (u unavailable) StartConversation(context.Context) error { return u.err }

func (u unavailable) SendMessage(context.Context, string) (string, error) { return "", u.err }

func (unavailable) EndConversation() {}

func (unavailable) IsConnected() bool { return false }
