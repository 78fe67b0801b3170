package audioio

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestBrowserSource_DropsWhileStopped(t *testing.T) {
	src := NewBrowserSource(DefaultConfig(), nil)
	src.PushPCM([]byte{1, 0, 2, 0}, 16000, 1)

	ctx := context.Background()
	src.Start(ctx)

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := src.Read(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Read = %v, want deadline (frame pushed before Start must be dropped)", err)
	}
}

func TestBrowserSource_ResamplesAndDownmixes(t *testing.T) {
	src := NewBrowserSource(DefaultConfig(), nil)
	ctx := context.Background()
	src.Start(ctx)

	// 20ms of 48kHz stereo
	stereo := make([]int16, 960*2)
	src.Push(AudioChunk{Samples: stereo, SampleRate: 48000, Channels: 2})

	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if chunk.SampleRate != 16000 || chunk.Channels != 1 {
		t.Errorf("format = %d Hz x %d", chunk.SampleRate, chunk.Channels)
	}
	if len(chunk.Samples) != 320 {
		t.Errorf("samples = %d, want 320", len(chunk.Samples))
	}
}

func TestBrowserSource_OverrunDropsOldest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueDepth = 2
	src := NewBrowserSource(cfg, nil)
	ctx := context.Background()
	src.Start(ctx)

	for i := int16(1); i <= 3; i++ {
		src.Push(AudioChunk{Samples: []int16{i}, SampleRate: 16000, Channels: 1})
	}

	first, _ := src.Read(ctx)
	if first.Samples[0] != 2 {
		t.Errorf("first sample = %d, want 2 (oldest dropped)", first.Samples[0])
	}
	if src.Stats().Overruns != 1 {
		t.Errorf("Overruns = %d, want 1", src.Stats().Overruns)
	}
}

func TestBrowserSource_StopUnblocksRead(t *testing.T) {
	src := NewBrowserSource(DefaultConfig(), nil)
	ctx := context.Background()
	src.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		_, err := src.Read(ctx)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	src.Stop()

	select {
	case err := <-errCh:
		if err != io.EOF {
			t.Errorf("Read = %v, want io.EOF", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not return after Stop")
	}
}

func TestBrowserSource_Discard(t *testing.T) {
	src := NewBrowserSource(DefaultConfig(), nil)
	src.Start(context.Background())
	src.PushPCM([]byte{1, 0}, 16000, 1)
	src.PushPCM([]byte{2, 0}, 16000, 1)

	if n := src.Discard(); n != 2 {
		t.Errorf("Discard = %d, want 2", n)
	}
}

func TestBrowserSink(t *testing.T) {
	sink := NewBrowserSink(DefaultConfig(), nil)
	ctx := context.Background()

	if err := sink.Write(ctx, AudioChunk{Samples: []int16{1}}); !errors.Is(err, ErrNoListener) {
		t.Fatalf("Write without listener = %v, want ErrNoListener", err)
	}

	var got []byte
	var gotRate int
	ended := 0
	sink.OnAudio(func(pcm []byte, rate int) error {
		got = append(got, pcm...)
		gotRate = rate
		return nil
	})
	sink.OnEnd(func() error { ended++; return nil })

	if err := sink.Write(ctx, AudioChunk{Samples: []int16{1, 2}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	sink.Flush(ctx)

	if len(got) != 4 || gotRate != 16000 {
		t.Errorf("delivered %d bytes at %d Hz", len(got), gotRate)
	}
	if ended != 1 {
		t.Errorf("ended = %d, want 1", ended)
	}
	if s := sink.Stats(); s.ChunksWritten != 1 || s.Utterances != 1 {
		t.Errorf("Stats = %+v", s)
	}
}
