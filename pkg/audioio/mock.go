package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a mock audio source for testing.
// Scripted chunks are returned first, without delay; after that it
// generates silence or a sine wave at real-time pace, or io.EOF when
// configured with WithEOFWhenDrained.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	scripted []AudioChunk
	eofAfter bool
	phase    float64

	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0

	chunksRead atomic.Int64
	starts     atomic.Int64
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithChunks queues chunks to be returned before generated audio.
func WithChunks(chunks ...AudioChunk) MockSourceOption {
	return func(m *MockSource) {
		m.scripted = append(m.scripted, chunks...)
	}
}

// WithEOFWhenDrained makes Read return io.EOF once scripted chunks run out.
func WithEOFWhenDrained() MockSourceOption {
	return func(m *MockSource) {
		m.eofAfter = true
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		amplitude: 0.5,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Queue appends scripted chunks.
func (m *MockSource) Queue(chunks ...AudioChunk) {
	m.mu.Lock()
	m.scripted = append(m.scripted, chunks...)
	m.mu.Unlock()
}

// Start begins capture.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if !m.running {
		m.running = true
		m.starts.Add(1)
	}
	return nil
}

// Stop halts capture.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	return nil
}

// Read returns the next scripted or generated chunk.
func (m *MockSource) Read(ctx context.Context) (AudioChunk, error) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return AudioChunk{}, io.EOF
	}
	if len(m.scripted) > 0 {
		chunk := m.scripted[0]
		m.scripted = m.scripted[1:]
		m.mu.Unlock()
		m.chunksRead.Add(1)
		return chunk, nil
	}
	if m.eofAfter {
		m.mu.Unlock()
		return AudioChunk{}, io.EOF
	}
	chunk := m.generateChunkLocked()
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case <-time.After(m.cfg.BufferDuration):
	}
	m.chunksRead.Add(1)
	return chunk, nil
}

func (m *MockSource) generateChunkLocked() AudioChunk {
	bufferSize := m.cfg.BufferSize()
	samples := make([]int16, bufferSize*m.cfg.Channels)

	if m.frequency > 0 {
		for i := 0; i < bufferSize; i++ {
			sample := m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate))
			v := int16(sample * 32767)
			for ch := 0; ch < m.cfg.Channels; ch++ {
				samples[i*m.cfg.Channels+ch] = v
			}
			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
	}

	return AudioChunk{
		Samples:    samples,
		SampleRate: m.cfg.SampleRate,
		Channels:   m.cfg.Channels,
	}
}

// Discard is a no-op: scripted chunks model audio that has not arrived yet.
func (m *MockSource) Discard() int {
	return 0
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return string(BackendMock)
}

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	m.closed = true
	m.running = false
	m.mu.Unlock()
	return nil
}

// Starts returns how many times the source went from stopped to running.
func (m *MockSource) Starts() int {
	return int(m.starts.Load())
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SourceStats{
		ChunksRead: m.chunksRead.Load(),
		Running:    running,
		Backend:    m.Name(),
	}
}

var _ SourceWithStats = (*MockSource)(nil)

// MockSink records everything written to it.
type MockSink struct {
	cfg Config

	mu         sync.Mutex
	closed     bool
	written    []byte
	chunks     int
	utterances int

	// WriteFunc overrides Write when set.
	WriteFunc func(ctx context.Context, chunk AudioChunk) error
}

// NewMockSink creates a new mock audio sink.
func NewMockSink(cfg Config) *MockSink {
	return &MockSink{cfg: cfg}
}

// Write records a chunk.
func (m *MockSink) Write(ctx context.Context, chunk AudioChunk) error {
	if m.WriteFunc != nil {
		if err := m.WriteFunc(ctx, chunk); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	m.written = append(m.written, chunk.Bytes()...)
	m.chunks++
	return nil
}

// Flush counts a completed utterance.
func (m *MockSink) Flush(ctx context.Context) error {
	m.mu.Lock()
	m.utterances++
	m.mu.Unlock()
	return ctx.Err()
}

// Clear discards recorded audio.
func (m *MockSink) Clear() error {
	m.mu.Lock()
	m.written = nil
	m.mu.Unlock()
	return nil
}

// Written returns a copy of everything written since the last Clear.
func (m *MockSink) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.written...)
}

// Utterances returns the number of Flush calls.
func (m *MockSink) Utterances() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.utterances
}

// Config returns the audio configuration.
func (m *MockSink) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSink) Name() string {
	return string(BackendMock)
}

// Close releases resources.
func (m *MockSink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Stats returns sink statistics.
func (m *MockSink) Stats() SinkStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return SinkStats{
		ChunksWritten: int64(m.chunks),
		BytesWritten:  int64(len(m.written)),
		Utterances:    int64(m.utterances),
		Backend:       m.Name(),
	}
}

var _ SinkWithStats = (*MockSink)(nil)
