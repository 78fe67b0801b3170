// Package speech recognizes patient speech and speaks replies.
//
// Recognition captures one utterance from an audio Source, packages it as
// WAV and sends it to a short-audio recognizer. Synthesis turns text into
// PCM for an audio Sink. Both are backed by Azure Speech REST endpoints.
//
// Example usage:
//
//	az, _ := speech.NewAzure(
//	    speech.WithKey(os.Getenv("SPEECH_KEY")),
//	    speech.WithRegion("eastus"),
//	)
//	tr, _ := speech.NewTranscriber(speech.TranscriberConfig{
//	    Recognizer: az, Synthesizer: az, Source: src, Sink: sink,
//	    Permissions: perms, Languages: lang.Default(),
//	})
//	res := tr.RecognizeOnce(ctx, "ta")
package speech

import (
	"context"
	"fmt"
	"time"
)

// Outcome names what a recognition attempt produced.
type Outcome int

const (
	// OutcomeStarted is emitted when a continuous session opens.
	OutcomeStarted Outcome = iota
	// OutcomeRecognized carries non-empty text.
	OutcomeRecognized
	// OutcomeNoMatch means audio was heard but nothing usable was recognized,
	// or nothing was heard at all.
	OutcomeNoMatch
	// OutcomeFailed carries an error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStarted:
		return "started"
	case OutcomeRecognized:
		return "recognized"
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the outcome of one recognition.
type Result struct {
	Outcome  Outcome
	Text     string
	Err      error
	Duration time.Duration
}

// Recognized builds a successful result.
func Recognized(text string) Result {
	return Result{Outcome: OutcomeRecognized, Text: text}
}

// NoMatch builds an empty result.
func NoMatch() Result {
	return Result{Outcome: OutcomeNoMatch}
}

// Failed builds a failed result.
func Failed(err error) Result {
	return Result{Outcome: OutcomeFailed, Err: err}
}

// Event is one item of a continuous recognition session.
type Event = Result

// Recognizer turns one WAV utterance into text.
type Recognizer interface {
	Recognize(ctx context.Context, wav []byte, sampleRate int, locale string) (Result, error)
}

// Synthesizer turns text into PCM16 mono audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice, locale string) (*AudioResult, error)
}

// AudioResult is synthesized audio.
type AudioResult struct {
	// Audio is raw PCM16 little-endian mono.
	Audio []byte

	// SampleRate of Audio in Hz.
	SampleRate int

	// LatencyMs is the request round trip.
	LatencyMs int64
}

// Duration returns the playback length of the audio.
func (a *AudioResult) Duration() time.Duration {
	if a.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(a.Audio)/2) * time.Second / time.Duration(a.SampleRate)
}

// Session is a running continuous recognition.
type Session interface {
	// Events delivers results until the session ends; the channel is then closed.
	Events() <-chan Event

	// Stop ends the session and releases the audio source. It is idempotent
	// and returns once the session has fully stopped.
	Stop() error
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, wav []byte, sampleRate int, locale string) (Result, error)

// Recognize calls f.
func (f RecognizerFunc) Recognize(ctx context.Context, wav []byte, sampleRate int, locale string) (Result, error) {
	return f(ctx, wav, sampleRate, locale)
}

// SynthesizerFunc adapts a function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, text, voice, locale string) (*AudioResult, error)

// Synthesize calls f.
func (f SynthesizerFunc) Synthesize(ctx context.Context, text, voice, locale string) (*AudioResult, error) {
	return f(ctx, text, voice, locale)
}
