package audioio

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestMockSource_StartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferDuration = 10 * time.Millisecond

	src := NewMockSource(cfg, nil)
	defer src.Close()

	ctx := context.Background()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// Starting again should be a no-op
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}
	if src.Starts() != 1 {
		t.Errorf("Starts = %d, want 1", src.Starts())
	}

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}

	if _, err := src.Read(ctx); err != io.EOF {
		t.Errorf("Read after Stop = %v, want io.EOF", err)
	}
}

func TestMockSource_ScriptedThenEOF(t *testing.T) {
	cfg := DefaultConfig()
	chunk := AudioChunk{Samples: []int16{1, 2, 3}, SampleRate: cfg.SampleRate, Channels: 1}

	src := NewMockSource(cfg, nil, WithChunks(chunk, chunk), WithEOFWhenDrained())
	ctx := context.Background()
	src.Start(ctx)

	for i := 0; i < 2; i++ {
		got, err := src.Read(ctx)
		if err != nil {
			t.Fatalf("Read %d: %v", i, err)
		}
		if len(got.Samples) != 3 {
			t.Errorf("Read %d: %d samples", i, len(got.Samples))
		}
	}
	if _, err := src.Read(ctx); err != io.EOF {
		t.Errorf("Read after drain = %v, want io.EOF", err)
	}
}

func TestMockSource_Generated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferDuration = 10 * time.Millisecond

	src := NewMockSource(cfg, nil, WithSineWave(440, 0.5))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	src.Start(ctx)

	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(chunk.Samples) != cfg.BufferSize() {
		t.Errorf("Expected %d samples, got %d", cfg.BufferSize(), len(chunk.Samples))
	}
	if Level(chunk.Samples) == 0 {
		t.Error("sine wave should not be silent")
	}
}

func TestMockSource_DiscardKeepsScript(t *testing.T) {
	cfg := DefaultConfig()
	src := NewMockSource(cfg, nil, WithEOFWhenDrained())
	src.Queue(AudioChunk{Samples: []int16{1}}, AudioChunk{Samples: []int16{2}})
	src.Start(context.Background())

	if n := src.Discard(); n != 0 {
		t.Errorf("Discard = %d, want 0", n)
	}
	if _, err := src.Read(context.Background()); err != nil {
		t.Errorf("Read after Discard: %v", err)
	}
}

func TestMockSink_Records(t *testing.T) {
	sink := NewMockSink(DefaultConfig())
	ctx := context.Background()

	sink.Write(ctx, AudioChunk{Samples: []int16{1, 2}})
	sink.Write(ctx, AudioChunk{Samples: []int16{3}})
	sink.Flush(ctx)

	if n := len(sink.Written()); n != 6 {
		t.Errorf("Written = %d bytes, want 6", n)
	}
	if sink.Utterances() != 1 {
		t.Errorf("Utterances = %d, want 1", sink.Utterances())
	}

	sink.Clear()
	if len(sink.Written()) != 0 {
		t.Error("Clear should drop recorded audio")
	}

	sink.Close()
	if err := sink.Write(ctx, AudioChunk{Samples: []int16{1}}); err == nil {
		t.Error("Write after Close should fail")
	}
}

func TestMockSink_WriteFunc(t *testing.T) {
	boom := errors.New("boom")
	sink := NewMockSink(DefaultConfig())
	sink.WriteFunc = func(ctx context.Context, chunk AudioChunk) error { return boom }

	if err := sink.Write(context.Background(), AudioChunk{}); !errors.Is(err, boom) {
		t.Errorf("Write = %v, want boom", err)
	}
}

func TestAudioChunk_Bytes(t *testing.T) {
	chunk := AudioChunk{
		Samples:    []int16{0x0102, 0x0304, -1},
		SampleRate: 16000,
		Channels:   1,
	}

	bytes := chunk.Bytes()
	if len(bytes) != 6 {
		t.Errorf("Expected 6 bytes, got %d", len(bytes))
	}
	if bytes[0] != 0x02 || bytes[1] != 0x01 {
		t.Errorf("First sample not encoded correctly: %v", bytes[0:2])
	}
}

func TestChunkFromBytes(t *testing.T) {
	chunk := ChunkFromBytes([]byte{0x02, 0x01, 0x04, 0x03, 0xFF, 0xFF}, 16000, 1)

	if len(chunk.Samples) != 3 {
		t.Fatalf("Expected 3 samples, got %d", len(chunk.Samples))
	}
	if chunk.Samples[0] != 0x0102 {
		t.Errorf("First sample incorrect: got %d, expected %d", chunk.Samples[0], 0x0102)
	}
	if chunk.Samples[2] != -1 {
		t.Errorf("Third sample incorrect: got %d, expected -1", chunk.Samples[2])
	}
}

func TestAudioChunk_Duration(t *testing.T) {
	chunk := AudioChunk{
		Samples:    make([]int16, 320), // 20ms at 16kHz mono
		SampleRate: 16000,
		Channels:   1,
	}

	if d := chunk.Duration(); d != 20*time.Millisecond {
		t.Errorf("Duration = %v, want 20ms", d)
	}
}
