// Package assistant runs conversation turns for the interpreter.
//
// A turn captures one utterance, translates it to English, sends it to the
// dialogue agent, translates the reply back and speaks it. At most one turn
// runs at a time. The wake-word listener shares the microphone with turns:
// it is stopped when a turn begins and resumed after a short delay once the
// turn has ended and the microphone lock is free.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-interpreter/pkg/audioio"
	"github.com/teslashibe/go-interpreter/pkg/dialogue"
	"github.com/teslashibe/go-interpreter/pkg/lang"
	"github.com/teslashibe/go-interpreter/pkg/speech"
	"github.com/teslashibe/go-interpreter/pkg/translate"
)

// Transcriber captures and speaks patient-language audio.
type Transcriber interface {
	RecognizeOnce(ctx context.Context, language string) speech.Result
	Speak(ctx context.Context, text, language string) error
	HasPermission() bool
	RequestPermission(ctx context.Context) (bool, error)
	SetVoiceGender(g lang.Gender)
	StopCapture() bool
}

// WakeWord is the background trigger listener.
type WakeWord interface {
	Start(ctx context.Context) error
	Stop()
	Active() bool
	SetEnabled(enabled bool)
	OnDetect(fn func())
}

// Deps are the orchestrator's collaborators. WakeWord and Presenter are optional.
type Deps struct {
	Transcriber Transcriber
	Translator  translate.Translator
	Agent       dialogue.Agent
	WakeWord    WakeWord
	Lock        *audioio.DeviceLock
	Presenter   Presenter
	Metrics     *MetricsCollector
}

type replayEntry struct {
	text     string
	language string
}

type turn struct {
	id       string
	source   TriggerSource
	language lang.Language
}

// Orchestrator is the turn state machine.
type Orchestrator struct {
	tr        Transcriber
	trans     translate.Translator
	agent     dialogue.Agent
	wake      WakeWord
	lock      *audioio.DeviceLock
	presenter Presenter
	metrics   *MetricsCollector
	languages lang.Table
	pivotCode string
	delay     time.Duration
	logger    *slog.Logger

	mu             sync.Mutex
	state          State
	language       string
	gender         lang.Gender
	autoPlay       bool
	wakeEnabled    bool
	visible        bool
	turnInProgress bool
	claimed        bool // a turn or replay owns the pipeline
	current        *turn
	resumeTimer    *time.Timer
	resumeGen      uint64
	baseCtx        context.Context

	replayMu    sync.Mutex
	replays     map[string]replayEntry
	replayOrder []string
	replayLimit int
}

// New creates an orchestrator in the Idle state.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch {
	case deps.Transcriber == nil:
		return nil, fmt.Errorf("%w: transcriber", ErrMissingDependency)
	case deps.Translator == nil:
		return nil, fmt.Errorf("%w: translator", ErrMissingDependency)
	case deps.Agent == nil:
		return nil, fmt.Errorf("%w: dialogue agent", ErrMissingDependency)
	case deps.Lock == nil:
		return nil, fmt.Errorf("%w: device lock", ErrMissingDependency)
	}
	if deps.Presenter == nil {
		deps.Presenter = nopPresenter{}
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetricsCollector()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	pivotCode := lang.Pivot
	if p, ok := cfg.Languages.Lookup(lang.Pivot); ok && p.TranslatorCode != "" {
		pivotCode = p.TranslatorCode
	}

	o := &Orchestrator{
		tr:          deps.Transcriber,
		trans:       deps.Translator,
		agent:       deps.Agent,
		wake:        deps.WakeWord,
		lock:        deps.Lock,
		presenter:   deps.Presenter,
		metrics:     deps.Metrics,
		languages:   cfg.Languages,
		pivotCode:   pivotCode,
		delay:       cfg.ResumeDelay,
		logger:      cfg.Logger.With("component", "assistant"),
		state:       StateIdle,
		language:    cfg.Language,
		gender:      cfg.VoiceGender,
		autoPlay:    cfg.AutoPlay,
		wakeEnabled: cfg.WakeWordEnabled && deps.WakeWord != nil,
		visible:     true,
		baseCtx:     context.Background(),
		replays:     make(map[string]replayEntry),
		replayLimit: cfg.ReplayHistory,
	}

	o.tr.SetVoiceGender(cfg.VoiceGender)
	if o.wake != nil {
		o.wake.SetEnabled(o.wakeEnabled)
		o.wake.OnDetect(o.onWakeWord)
	}
	return o, nil
}

// Metrics returns the turn metrics collector.
func (o *Orchestrator) Metrics() *MetricsCollector {
	return o.metrics
}

// Session returns a snapshot of the observable state.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := Session{
		State:           o.state,
		StatusText:      StatusText(o.state),
		Language:        o.language,
		VoiceGender:     o.gender,
		AutoPlay:        o.autoPlay,
		WakeWordEnabled: o.wakeEnabled,
		Visible:         o.visible,
		TurnInProgress:  o.turnInProgress,
		CaptureLocked:   o.lock.HeldBy(audioio.OwnerTurn),
		Connected:       o.agent.IsConnected(),
	}
	if o.wake != nil {
		s.WakeWordActive = o.wake.Active()
	}
	if o.current != nil {
		s.TurnID = o.current.id
		s.TurnSource = o.current.source
	}
	return s
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Run starts wake-word listening when enabled and blocks until ctx is done.
// Wake-word sessions and wake-triggered turns inherit ctx.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	o.baseCtx = ctx
	o.startWakeWordLocked()
	o.mu.Unlock()

	<-ctx.Done()

	o.mu.Lock()
	o.cancelResumeLocked()
	o.stopWakeWordLocked()
	o.mu.Unlock()
	return nil
}

// Connect starts the dialogue session and updates the connectivity indicator.
func (o *Orchestrator) Connect(ctx context.Context) error {
	if err := o.agent.StartConversation(ctx); err != nil {
		o.logger.Warn("dialogue connection failed", "error", err)
		o.presenter.SetConnection(false, MsgConnectionFailed)
		return err
	}
	o.presenter.SetConnection(true, MsgConnected)
	return nil
}

// Trigger runs one turn to completion on the calling goroutine. It returns
// ErrBusy without side effects when a turn is already in progress, and
// otherwise the turn's outcome: nil, ErrEmptyInput, ErrPermissionDenied or
// a *StageError.
func (o *Orchestrator) Trigger(ctx context.Context, src TriggerSource) error {
	t, err := o.begin(src)
	if err != nil {
		return err
	}
	return o.runTurn(ctx, t)
}

// TriggerAsync accepts a turn and runs it on a new goroutine.
func (o *Orchestrator) TriggerAsync(ctx context.Context, src TriggerSource) error {
	t, err := o.begin(src)
	if err != nil {
		return err
	}
	go o.runTurn(ctx, t)
	return nil
}

// ToggleMic ends capture early while listening, and otherwise starts a
// manual turn in the background.
func (o *Orchestrator) ToggleMic(ctx context.Context) error {
	o.mu.Lock()
	capturing := o.state == StateCapturing
	o.mu.Unlock()

	if capturing {
		o.tr.StopCapture()
		return nil
	}
	return o.TriggerAsync(ctx, SourceManual)
}

func (o *Orchestrator) onWakeWord() {
	o.mu.Lock()
	ctx := o.baseCtx
	o.mu.Unlock()

	if err := o.TriggerAsync(ctx, SourceWakeWord); err != nil {
		o.logger.Debug("wake word ignored", "error", err)
	}
}

// begin claims the single turn slot and silences the wake word in the same
// critical section. turnInProgress is only set once permission is granted.
func (o *Orchestrator) begin(src TriggerSource) (*turn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.claimed || o.turnInProgress {
		return nil, ErrBusy
	}
	l, _ := o.languages.Lookup(o.language)

	t := &turn{id: uuid.NewString(), source: src, language: l}
	o.claimed = true
	o.current = t
	o.cancelResumeLocked()
	o.stopWakeWordLocked()

	o.logger.Info("turn started", "turn_id", t.id, "source", src, "language", l.Code)
	return t, nil
}

func (o *Orchestrator) runTurn(ctx context.Context, t *turn) (err error) {
	o.metrics.BeginTurn(t.id, t.source, t.language.Code)
	defer func() { o.finish(t, err) }()

	if !o.tr.HasPermission() {
		o.setState(StateAwaitingPermission)
		granted, perr := o.tr.RequestPermission(ctx)
		if perr != nil || !granted {
			o.fail(t, MsgPermissionDenied)
			if perr != nil {
				return fmt.Errorf("%w: %v", ErrPermissionDenied, perr)
			}
			return ErrPermissionDenied
		}
	}

	o.mu.Lock()
	o.turnInProgress = true
	o.mu.Unlock()

	text, err := o.capture(ctx, t)
	if err != nil {
		return err
	}

	o.setState(StateTranslating)
	english := text
	if !t.language.IsPivot() {
		start := time.Now()
		english, err = o.trans.Translate(ctx, text, t.language.TranslatorCode, o.pivotCode)
		o.metrics.Observe(StageTranslateIn, time.Since(start))
		if err != nil {
			o.addEntry(t, EntryUser, text, "")
			o.fail(t, MsgProcessingFailed)
			return &StageError{Stage: StageTranslateIn, Err: err}
		}
	}
	o.addEntry(t, EntryUser, text, english)

	o.setState(StateDialoguing)
	start := time.Now()
	replyEnglish, err := o.agent.SendMessage(ctx, english)
	o.metrics.Observe(StageDialogue, time.Since(start))
	if err != nil {
		if dialogue.IsAuth(err) {
			o.presenter.SetConnection(false, MsgConnectionFailed)
		}
		o.fail(t, MsgProcessingFailed)
		return &StageError{Stage: StageDialogue, Err: err}
	}
	o.presenter.SetConnection(true, MsgConnected)

	reply := replyEnglish
	if !t.language.IsPivot() {
		o.setState(StateTranslating)
		start := time.Now()
		reply, err = o.trans.Translate(ctx, replyEnglish, o.pivotCode, t.language.TranslatorCode)
		o.metrics.Observe(StageTranslateOut, time.Since(start))
		if err != nil {
			o.fail(t, MsgProcessingFailed)
			return &StageError{Stage: StageTranslateOut, Err: err}
		}
	}
	entry := o.addEntry(t, EntryBot, reply, replyEnglish)
	o.remember(entry)

	o.mu.Lock()
	autoPlay := o.autoPlay
	o.mu.Unlock()

	if autoPlay && strings.TrimSpace(reply) != "" {
		o.setState(StateSpeaking)
		start := time.Now()
		err = o.tr.Speak(ctx, reply, t.language.Code)
		o.metrics.Observe(StageSpeak, time.Since(start))
		if err != nil {
			o.fail(t, MsgProcessingFailed)
			return &StageError{Stage: StageSpeak, Err: err}
		}
	}
	return nil
}

// capture holds the microphone for exactly one utterance.
func (o *Orchestrator) capture(ctx context.Context, t *turn) (string, error) {
	if !o.lock.TryAcquire(audioio.OwnerTurn) {
		o.fail(t, captureMessage(ErrDeviceBusy))
		return "", &StageError{Stage: StageCapture, Err: ErrDeviceBusy}
	}
	defer o.lock.Release(audioio.OwnerTurn)

	o.setState(StateCapturing)
	start := time.Now()
	res := o.tr.RecognizeOnce(ctx, t.language.Code)
	o.metrics.Observe(StageCapture, time.Since(start))

	switch res.Outcome {
	case speech.OutcomeRecognized:
		if text := strings.TrimSpace(res.Text); text != "" {
			return text, nil
		}
		return "", ErrEmptyInput
	case speech.OutcomeFailed:
		err := res.Err
		if err == nil {
			err = speech.ErrRecognitionFailed
		}
		o.fail(t, captureMessage(err))
		return "", &StageError{Stage: StageCapture, Err: err}
	default:
		return "", ErrEmptyInput
	}
}

// finish restores Idle, frees the microphone and schedules wake-word resumption.
func (o *Orchestrator) finish(t *turn, err error) {
	o.lock.Release(audioio.OwnerTurn)

	o.mu.Lock()
	o.state = StateIdle
	o.turnInProgress = false
	o.claimed = false
	o.current = nil
	o.scheduleResumeLocked()
	o.mu.Unlock()

	o.presenter.SetStatus(Status{State: StateIdle, Text: TextIdle})

	outcome, stage := OutcomeCompleted, Stage("")
	switch {
	case err == nil:
	case errors.Is(err, ErrEmptyInput):
		outcome = OutcomeEmpty
	case errors.Is(err, ErrPermissionDenied):
		outcome = OutcomePermissionDenied
	default:
		outcome, stage = OutcomeFailed, StageOf(err)
	}
	m := o.metrics.EndTurn(outcome, stage)

	if outcome == OutcomeFailed {
		o.logger.Error("turn failed", "turn_id", t.id, "stage", stage, "error", err)
		return
	}
	o.logger.Info("turn finished", "turn_id", t.id, "outcome", outcome, "latency", m.FormatLatency())
}

func (o *Orchestrator) fail(t *turn, msg string) {
	o.setState(StateError)
	o.addEntry(t, EntryError, msg, "")
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()

	o.presenter.SetStatus(Status{State: s, Text: StatusText(s)})
}

func (o *Orchestrator) addEntry(t *turn, kind EntryKind, text, english string) Entry {
	e := Entry{
		ID:       uuid.NewString(),
		Kind:     kind,
		Text:     text,
		Language: t.language.Code,
		TurnID:   t.id,
		At:       time.Now(),
	}
	if kind != EntryError && !t.language.IsPivot() {
		e.English = english
	}
	o.presenter.AddEntry(e)
	return e
}

func (o *Orchestrator) remember(e Entry) {
	o.replayMu.Lock()
	defer o.replayMu.Unlock()

	o.replays[e.ID] = replayEntry{text: e.Text, language: e.Language}
	o.replayOrder = append(o.replayOrder, e.ID)
	if len(o.replayOrder) > o.replayLimit {
		delete(o.replays, o.replayOrder[0])
		o.replayOrder = o.replayOrder[1:]
	}
}

// ForgetReplays drops every replayable reply, as when the transcript is cleared.
func (o *Orchestrator) ForgetReplays() {
	o.replayMu.Lock()
	defer o.replayMu.Unlock()
	o.replays = make(map[string]replayEntry)
	o.replayOrder = nil
}

// Replay speaks a previous bot reply again in the language it was given in.
// It holds the turn slot while speaking, so triggers and other replays are
// rejected with ErrBusy and the wake word stays off until it ends.
func (o *Orchestrator) Replay(ctx context.Context, entryID string) error {
	o.replayMu.Lock()
	r, ok := o.replays[entryID]
	o.replayMu.Unlock()
	if !ok {
		return ErrEntryNotFound
	}

	o.mu.Lock()
	if o.claimed || o.turnInProgress {
		o.mu.Unlock()
		return ErrBusy
	}
	o.claimed = true
	o.cancelResumeLocked()
	o.stopWakeWordLocked()
	o.mu.Unlock()

	o.setState(StateSpeaking)
	err := o.tr.Speak(ctx, r.text, r.language)

	o.mu.Lock()
	o.state = StateIdle
	o.claimed = false
	o.scheduleResumeLocked()
	o.mu.Unlock()
	o.presenter.SetStatus(Status{State: StateIdle, Text: TextIdle})

	if err != nil {
		return &StageError{Stage: StageSpeak, Err: err}
	}
	return nil
}

// SetLanguage selects the patient language for the next turn.
func (o *Orchestrator) SetLanguage(code string) error {
	if !o.languages.Supported(code) {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	o.mu.Lock()
	o.language = code
	o.mu.Unlock()
	o.logger.Info("language changed", "language", code)
	return nil
}

// SetVoiceGender selects the synthesis voice.
func (o *Orchestrator) SetVoiceGender(g lang.Gender) error {
	if g != lang.Female && g != lang.Male {
		return fmt.Errorf("%w: %q", ErrUnknownGender, g)
	}
	o.mu.Lock()
	o.gender = g
	o.mu.Unlock()
	o.tr.SetVoiceGender(g)
	return nil
}

// SetAutoPlay sets whether replies are spoken automatically.
func (o *Orchestrator) SetAutoPlay(on bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.autoPlay = on
}

// SetWakeWordEnabled toggles hands-free triggering. Turning it on asks for
// microphone permission first; on denial the toggle stays off.
func (o *Orchestrator) SetWakeWordEnabled(ctx context.Context, on bool) error {
	if o.wake == nil {
		if on {
			return ErrNoWakeWord
		}
		return nil
	}

	if !on {
		o.mu.Lock()
		o.wakeEnabled = false
		o.cancelResumeLocked()
		o.wake.SetEnabled(false)
		o.mu.Unlock()
		return nil
	}

	if !o.tr.HasPermission() {
		granted, err := o.tr.RequestPermission(ctx)
		if err != nil || !granted {
			o.presenter.AddEntry(Entry{
				ID:   uuid.NewString(),
				Kind: EntryError,
				Text: MsgWakeWordPermission,
				At:   time.Now(),
			})
			return ErrPermissionDenied
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.wakeEnabled = true
	o.wake.SetEnabled(true)
	o.startWakeWordLocked()
	return nil
}

// Suspend stops wake-word listening while the page is hidden.
func (o *Orchestrator) Suspend() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.visible = false
	o.cancelResumeLocked()
	o.stopWakeWordLocked()
}

// Resume restarts wake-word listening when the page becomes visible again.
func (o *Orchestrator) Resume() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.visible = true
	o.startWakeWordLocked()
}

// startWakeWordLocked starts the listener if nothing else needs the
// microphone. Caller holds mu.
func (o *Orchestrator) startWakeWordLocked() {
	if o.wake == nil || !o.wakeEnabled || !o.visible {
		return
	}
	if o.claimed || o.turnInProgress || o.state != StateIdle || o.lock.Held() {
		return
	}
	if err := o.wake.Start(o.baseCtx); err != nil {
		o.logger.Warn("wake word start failed", "error", err)
	}
}

// Caller holds mu.
func (o *Orchestrator) stopWakeWordLocked() {
	if o.wake != nil {
		o.wake.Stop()
	}
}

// Caller holds mu.
func (o *Orchestrator) scheduleResumeLocked() {
	o.cancelResumeLocked()
	if o.wake == nil || !o.wakeEnabled || !o.visible {
		return
	}
	gen := o.resumeGen
	o.resumeTimer = time.AfterFunc(o.delay, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if gen != o.resumeGen {
			return
		}
		o.resumeTimer = nil
		o.startWakeWordLocked()
	})
}

// Caller holds mu.
func (o *Orchestrator) cancelResumeLocked() {
	o.resumeGen++
	if o.resumeTimer != nil {
		o.resumeTimer.Stop()
		o.resumeTimer = nil
	}
}
