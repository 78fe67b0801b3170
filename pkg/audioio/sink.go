package audioio

import (
	"context"
	"io"
)

// Sink plays audio to a speaker.
type Sink interface {
	// Write sends an audio chunk to the output device.
	Write(ctx context.Context, chunk AudioChunk) error

	// Flush marks the end of an utterance and waits until it is handed off.
	Flush(ctx context.Context) error

	// Clear discards all buffered audio immediately.
	Clear() error

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "browser", "mock").
	Name() string

	// Close releases all resources.
	io.Closer
}

// SinkStats contains statistics about the audio sink.
type SinkStats struct {
	// ChunksWritten is the total number of chunks written.
	ChunksWritten int64 `json:"chunks_written"`

	// BytesWritten is the total PCM payload delivered.
	BytesWritten int64 `json:"bytes_written"`

	// Utterances is the number of completed Flush calls.
	Utterances int64 `json:"utterances"`

	// Backend is the name of the audio backend.
	Backend string `json:"backend"`
}

// SinkWithStats extends Sink with statistics.
type SinkWithStats interface {
	Sink
	Stats() SinkStats
}
