package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-interpreter/pkg/audioio"
	"github.com/teslashibe/go-interpreter/pkg/lang"
)

// playbackChunk is how much synthesized audio goes into one sink write.
const playbackChunk = 100 * time.Millisecond

// TranscriberConfig wires a Transcriber.
type TranscriberConfig struct {
	Recognizer  Recognizer
	Synthesizer Synthesizer
	Source      audioio.Source
	Sink        audioio.Sink
	Permissions *audioio.Permissions
	Languages   lang.Table
	Segmenter   Segmenter
	VoiceGender lang.Gender
	Logger      *slog.Logger
}

// Transcriber recognizes single utterances and speaks text over one
// microphone/speaker pair.
type Transcriber struct {
	recognizer  Recognizer
	synthesizer Synthesizer
	source      audioio.Source
	sink        audioio.Sink
	perms       *audioio.Permissions
	languages   lang.Table
	segmenter   Segmenter
	logger      *slog.Logger

	mu     sync.Mutex
	gender lang.Gender
	stop   chan struct{} // non-nil while RecognizeOnce is capturing
}

// NewTranscriber validates cfg and builds a Transcriber.
func NewTranscriber(cfg TranscriberConfig) (*Transcriber, error) {
	switch {
	case cfg.Recognizer == nil:
		return nil, fmt.Errorf("%w: recognizer", ErrMissingDependency)
	case cfg.Synthesizer == nil:
		return nil, fmt.Errorf("%w: synthesizer", ErrMissingDependency)
	case cfg.Source == nil:
		return nil, fmt.Errorf("%w: source", ErrMissingDependency)
	case cfg.Sink == nil:
		return nil, fmt.Errorf("%w: sink", ErrMissingDependency)
	case cfg.Permissions == nil:
		return nil, fmt.Errorf("%w: permissions", ErrMissingDependency)
	}

	if len(cfg.Languages) == 0 {
		cfg.Languages = lang.Default()
	}
	if cfg.Segmenter == (Segmenter{}) {
		cfg.Segmenter = DefaultSegmenter()
	}
	if cfg.VoiceGender == "" {
		cfg.VoiceGender = lang.Female
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Transcriber{
		recognizer:  cfg.Recognizer,
		synthesizer: cfg.Synthesizer,
		source:      cfg.Source,
		sink:        cfg.Sink,
		perms:       cfg.Permissions,
		languages:   cfg.Languages,
		segmenter:   cfg.Segmenter,
		gender:      cfg.VoiceGender,
		logger:      cfg.Logger.With("component", "speech.transcriber"),
	}, nil
}

// HasPermission reports whether microphone access is granted. It never prompts.
func (t *Transcriber) HasPermission() bool {
	return t.perms.Granted()
}

// RequestPermission asks the browser for microphone access.
func (t *Transcriber) RequestPermission(ctx context.Context) (bool, error) {
	return t.perms.Request(ctx)
}

// SetVoiceGender selects which of a language's voices Speak uses.
func (t *Transcriber) SetVoiceGender(g lang.Gender) {
	t.mu.Lock()
	t.gender = g
	t.mu.Unlock()
}

// VoiceGender returns the current voice preference.
func (t *Transcriber) VoiceGender() lang.Gender {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gender
}

// RecognizeOnce captures one utterance in language and recognizes it.
// It never returns OutcomeStarted.
func (t *Transcriber) RecognizeOnce(ctx context.Context, language string) Result {
	l, ok := t.languages.Lookup(language)
	if !ok {
		return Failed(fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language))
	}
	if !t.perms.Granted() {
		return Failed(ErrNoPermission)
	}

	stop := make(chan struct{})
	t.mu.Lock()
	t.stop = stop
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		if t.stop == stop {
			t.stop = nil
		}
		t.mu.Unlock()
	}()

	if err := t.source.Start(ctx); err != nil {
		return Failed(fmt.Errorf("start microphone: %w", err))
	}
	t.source.Discard()
	defer t.source.Stop()

	start := time.Now()
	samples, err := t.segmenter.Capture(ctx, t.source, stop)
	if err != nil {
		return Failed(err)
	}
	if len(samples) == 0 {
		t.logger.Debug("no speech heard", "language", language)
		return NoMatch()
	}

	cfg := t.source.Config()
	wav := audioio.EncodeWAV(samples, cfg.SampleRate, cfg.Channels)
	res, err := t.recognizer.Recognize(ctx, wav, cfg.SampleRate, l.SpeechLocale)
	if err != nil {
		return Failed(err)
	}
	if res.Outcome == OutcomeRecognized && strings.TrimSpace(res.Text) == "" {
		res = NoMatch()
	}

	t.logger.Info("utterance recognized",
		"language", language,
		"outcome", res.Outcome,
		"chars", len(res.Text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res
}

// StopCapture ends an in-progress RecognizeOnce early. The speech heard so
// far is still recognized.
func (t *Transcriber) StopCapture() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop == nil {
		return false
	}
	close(t.stop)
	t.stop = nil
	return true
}

// Speak synthesizes text in language and plays it through the sink.
func (t *Transcriber) Speak(ctx context.Context, text, language string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	l, ok := t.languages.Lookup(language)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
	voice := l.Voice(t.VoiceGender())

	audio, err := t.synthesizer.Synthesize(ctx, text, voice, l.SpeechLocale)
	if err != nil {
		return err
	}

	samples := audioio.DecodePCM16(audio.Audio)
	step := int(playbackChunk.Seconds() * float64(audio.SampleRate))
	if step <= 0 {
		step = len(samples)
	}

	for i := 0; i < len(samples); i += step {
		end := i + step
		if end > len(samples) {
			end = len(samples)
		}
		chunk := audioio.AudioChunk{Samples: samples[i:end], SampleRate: audio.SampleRate, Channels: 1}
		if err := t.sink.Write(ctx, chunk); err != nil {
			return fmt.Errorf("play audio: %w", err)
		}
	}

	t.logger.Debug("spoke reply", "language", language, "voice", voice, "duration", audio.Duration())
	return t.sink.Flush(ctx)
}

// StartContinuous opens a recognition session that segments and recognizes
// utterances until stopped or until the recognizer fails.
func (t *Transcriber) StartContinuous(ctx context.Context, locale string) (Session, error) {
	if !t.perms.Granted() {
		return nil, ErrNoPermission
	}
	if err := t.source.Start(ctx); err != nil {
		return nil, fmt.Errorf("start microphone: %w", err)
	}
	t.source.Discard()

	sctx, cancel := context.WithCancel(ctx)
	s := &continuousSession{
		events: make(chan Event, 8),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	seg := t.segmenter
	seg.InitialSilence = 0

	go s.run(sctx, t, seg, locale)
	return s, nil
}

type continuousSession struct {
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *continuousSession) Events() <-chan Event {
	return s.events
}

func (s *continuousSession) Stop() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}

func (s *continuousSession) emit(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *continuousSession) run(ctx context.Context, t *Transcriber, seg Segmenter, locale string) {
	defer close(s.done)
	defer close(s.events)
	defer t.source.Stop()

	if !s.emit(ctx, Event{Outcome: OutcomeStarted}) {
		return
	}

	cfg := t.source.Config()
	for {
		samples, err := seg.Capture(ctx, t.source, nil)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.emit(ctx, Failed(err))
			return
		}
		if len(samples) == 0 {
			// source ended
			s.emit(ctx, Failed(errors.New("speech: microphone stream ended")))
			return
		}

		wav := audioio.EncodeWAV(samples, cfg.SampleRate, cfg.Channels)
		res, err := t.recognizer.Recognize(ctx, wav, cfg.SampleRate, locale)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.emit(ctx, Failed(err))
			return
		}
		if !s.emit(ctx, res) {
			return
		}
	}
}
