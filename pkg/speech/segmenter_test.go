package speech

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-interpreter/pkg/audioio"
)

func loud(n int) []audioio.AudioChunk {
	chunks := make([]audioio.AudioChunk, n)
	for i := range chunks {
		s := make([]int16, 320)
		for j := range s {
			s[j] = 8000
			if j%2 == 1 {
				s[j] = -8000
			}
		}
		chunks[i] = audioio.AudioChunk{Samples: s, SampleRate: 16000, Channels: 1}
	}
	return chunks
}

func quiet(n int) []audioio.AudioChunk {
	chunks := make([]audioio.AudioChunk, n)
	for i := range chunks {
		chunks[i] = audioio.AudioChunk{Samples: make([]int16, 320), SampleRate: 16000, Channels: 1}
	}
	return chunks
}

func join(parts ...[]audioio.AudioChunk) []audioio.AudioChunk {
	var out []audioio.AudioChunk
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func testSegmenter() Segmenter {
	return Segmenter{
		Threshold:       0.0008,
		InitialSilence:  200 * time.Millisecond,
		TrailingSilence: 100 * time.Millisecond,
		MaxUtterance:    time.Second,
	}
}

func scripted(chunks []audioio.AudioChunk) *audioio.MockSource {
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil, audioio.WithChunks(chunks...), audioio.WithEOFWhenDrained())
	src.Start(context.Background())
	return src
}

func TestSegmenterCapture(t *testing.T) {
	tests := []struct {
		name    string
		chunks  []audioio.AudioChunk
		samples int
	}{
		// 5 quiet trailing chunks = 100ms ends the utterance; they are included.
		{"utterance then silence", join(quiet(3), loud(10), quiet(5), loud(10)), 15 * 320},
		{"initial silence", join(quiet(10), loud(5)), 0},
		{"max utterance", loud(60), 50 * 320},
		{"eof mid speech", join(quiet(1), loud(4)), 4 * 320},
		{"short pause kept", join(loud(2), quiet(2), loud(2), quiet(5)), 11 * 320},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testSegmenter().Capture(context.Background(), scripted(tt.chunks), nil)
			if err != nil {
				t.Fatalf("Capture: %v", err)
			}
			if len(got) != tt.samples {
				t.Errorf("samples = %d, want %d", len(got), tt.samples)
			}
		})
	}
}

func TestSegmenterStop(t *testing.T) {
	// A live source that never ends on its own.
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil, audioio.WithChunks(loud(3)...), audioio.WithSineWave(300, 0.5))
	src.Start(context.Background())

	stop := make(chan struct{})
	time.AfterFunc(50*time.Millisecond, func() { close(stop) })

	seg := testSegmenter()
	seg.MaxUtterance = 0
	got, err := seg.Capture(context.Background(), src, stop)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(got) < 3*320 {
		t.Errorf("samples = %d, want at least the scripted speech", len(got))
	}
}

func TestSegmenterContextCanceled(t *testing.T) {
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil)
	src.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	seg := testSegmenter()
	seg.InitialSilence = 0
	if _, err := seg.Capture(ctx, src, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
