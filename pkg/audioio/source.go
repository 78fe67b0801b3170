package audioio

import (
	"context"
	"io"
	"time"
)

// AudioChunk represents a chunk of audio data.
type AudioChunk struct {
	// Samples contains PCM16 audio samples (little-endian).
	Samples []int16

	// SampleRate is the sample rate of this chunk.
	SampleRate int

	// Channels is the number of channels in this chunk.
	Channels int
}

// ChunkFromBytes builds a chunk from raw PCM16 little-endian bytes.
func ChunkFromBytes(data []byte, sampleRate, channels int) AudioChunk {
	return AudioChunk{
		Samples:    DecodePCM16(data),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Bytes returns the raw bytes of the audio chunk.
func (c *AudioChunk) Bytes() []byte {
	return EncodePCM16(c.Samples)
}

// Duration returns the duration of this audio chunk.
func (c *AudioChunk) Duration() time.Duration {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// Source captures audio from a microphone.
type Source interface {
	// Start begins audio capture. Starting a running source is a no-op.
	Start(ctx context.Context) error

	// Stop halts audio capture.
	// It is safe to call Stop multiple times.
	Stop() error

	// Read reads the next audio chunk, blocking if necessary.
	// Returns io.EOF when the source is stopped.
	Read(ctx context.Context) (AudioChunk, error)

	// Discard drops buffered audio and returns the number of chunks dropped.
	Discard() int

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "browser", "mock").
	Name() string

	// Close releases all resources.
	// After Close, the source cannot be restarted.
	io.Closer
}

// SourceStats contains statistics about the audio source.
type SourceStats struct {
	// ChunksRead is the total number of chunks read.
	ChunksRead int64 `json:"chunks_read"`

	// Overruns is the number of chunks dropped because nobody was reading.
	Overruns int64 `json:"overruns"`

	// Running indicates if the source is currently capturing.
	Running bool `json:"running"`

	// Backend is the name of the audio backend.
	Backend string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}
