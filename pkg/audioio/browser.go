package audioio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrNoListener is returned by BrowserSink when no browser is attached.
var ErrNoListener = errors.New("audioio: no browser attached for playback")

// BrowserSource buffers microphone frames pushed by the websocket bridge.
// Frames pushed while the source is stopped are dropped.
type BrowserSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	stopCh  chan struct{}
	ch      chan AudioChunk

	chunksRead atomic.Int64
	overruns   atomic.Int64
}

// NewBrowserSource creates a source delivering chunks at cfg.SampleRate.
func NewBrowserSource(cfg Config, logger *slog.Logger) *BrowserSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserSource{
		cfg:    cfg,
		logger: logger.With("component", "audioio.browser"),
		stopCh: make(chan struct{}),
		ch:     make(chan AudioChunk, cfg.QueueDepth),
	}
}

// Start begins accepting pushed audio.
func (b *BrowserSource) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return io.ErrClosedPipe
	}
	if b.running {
		return nil
	}
	b.running = true
	b.stopCh = make(chan struct{})
	b.drainLocked()
	b.logger.Debug("browser source started")
	return nil
}

// Stop stops accepting audio and drops anything buffered.
func (b *BrowserSource) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return nil
	}
	b.running = false
	close(b.stopCh)
	b.drainLocked()
	b.logger.Debug("browser source stopped")
	return nil
}

// Push converts chunk to the configured format and queues it. When the
// queue is full the oldest chunk is dropped.
func (b *BrowserSource) Push(chunk AudioChunk) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running || len(chunk.Samples) == 0 {
		return
	}

	// Only mono output is downmixed.
	channels := chunk.Channels
	if b.cfg.Channels != 1 {
		channels = 1
	}
	samples := Convert(chunk.Samples, channels, chunk.SampleRate, b.cfg.SampleRate)
	out := AudioChunk{Samples: samples, SampleRate: b.cfg.SampleRate, Channels: b.cfg.Channels}

	for {
		select {
		case b.ch <- out:
			return
		default:
		}
		select {
		case <-b.ch:
			b.overruns.Add(1)
		default:
		}
	}
}

// PushPCM queues raw PCM16 little-endian bytes.
func (b *BrowserSource) PushPCM(data []byte, sampleRate, channels int) {
	b.Push(ChunkFromBytes(data, sampleRate, channels))
}

// Read returns the next chunk, or io.EOF once the source is stopped.
func (b *BrowserSource) Read(ctx context.Context) (AudioChunk, error) {
	b.mu.Lock()
	running := b.running
	stopCh := b.stopCh
	b.mu.Unlock()

	if !running {
		return AudioChunk{}, io.EOF
	}

	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case <-stopCh:
		return AudioChunk{}, io.EOF
	case chunk := <-b.ch:
		b.chunksRead.Add(1)
		return chunk, nil
	}
}

// Discard drops buffered chunks.
func (b *BrowserSource) Discard() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drainLocked()
}

func (b *BrowserSource) drainLocked() int {
	n := 0
	for {
		select {
		case <-b.ch:
			n++
		default:
			return n
		}
	}
}

// Config returns the audio configuration.
func (b *BrowserSource) Config() Config {
	return b.cfg
}

// Name returns "browser".
func (b *BrowserSource) Name() string {
	return string(BackendBrowser)
}

// Close stops the source permanently.
func (b *BrowserSource) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return b.Stop()
}

// Stats returns source statistics.
func (b *BrowserSource) Stats() SourceStats {
	b.mu.Lock()
	running := b.running
	b.mu.Unlock()

	return SourceStats{
		ChunksRead: b.chunksRead.Load(),
		Overruns:   b.overruns.Load(),
		Running:    running,
		Backend:    b.Name(),
	}
}

var _ SourceWithStats = (*BrowserSource)(nil)

// BrowserSink hands synthesized audio to the websocket bridge.
type BrowserSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	onAudio func(pcm []byte, sampleRate int) error
	onEnd   func() error

	chunksWritten atomic.Int64
	bytesWritten  atomic.Int64
	utterances    atomic.Int64
}

// NewBrowserSink creates a sink. Nothing plays until OnAudio is set.
func NewBrowserSink(cfg Config, logger *slog.Logger) *BrowserSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserSink{
		cfg:    cfg,
		logger: logger.With("component", "audioio.browser"),
	}
}

// OnAudio sets the delivery function for PCM frames.
func (s *BrowserSink) OnAudio(fn func(pcm []byte, sampleRate int) error) {
	s.mu.Lock()
	s.onAudio = fn
	s.mu.Unlock()
}

// OnEnd sets the function called when an utterance is complete.
func (s *BrowserSink) OnEnd(fn func() error) {
	s.mu.Lock()
	s.onEnd = fn
	s.mu.Unlock()
}

// Write delivers one chunk to the browser.
func (s *BrowserSink) Write(ctx context.Context, chunk AudioChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	deliver := s.onAudio
	s.mu.RUnlock()

	if deliver == nil {
		return ErrNoListener
	}

	pcm := chunk.Bytes()
	rate := chunk.SampleRate
	if rate == 0 {
		rate = s.cfg.SampleRate
	}
	if err := deliver(pcm, rate); err != nil {
		return err
	}
	s.chunksWritten.Add(1)
	s.bytesWritten.Add(int64(len(pcm)))
	return nil
}

// Flush signals end of utterance.
func (s *BrowserSink) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	end := s.onEnd
	s.mu.RUnlock()

	s.utterances.Add(1)
	if end == nil {
		return nil
	}
	return end()
}

// Clear is a no-op; the browser owns its playback buffer.
func (s *BrowserSink) Clear() error {
	return nil
}

// Config returns the audio configuration.
func (s *BrowserSink) Config() Config {
	return s.cfg
}

// Name returns "browser".
func (s *BrowserSink) Name() string {
	return string(BackendBrowser)
}

// Close detaches the delivery functions.
func (s *BrowserSink) Close() error {
	s.OnAudio(nil)
	s.OnEnd(nil)
	return nil
}

// Stats returns sink statistics.
func (s *BrowserSink) Stats() SinkStats {
	return SinkStats{
		ChunksWritten: s.chunksWritten.Load(),
		BytesWritten:  s.bytesWritten.Load(),
		Utterances:    s.utterances.Load(),
		Backend:       s.Name(),
	}
}

var _ SinkWithStats = (*BrowserSink)(nil)
