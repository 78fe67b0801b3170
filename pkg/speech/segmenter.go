package speech

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/teslashibe/go-interpreter/pkg/audioio"
)

// Segmenter finds one utterance in a stream of audio chunks using an
// energy threshold. Durations are measured in audio time, not wall time.
type Segmenter struct {
	// Threshold is the mean-square energy (0..1) above which a chunk is speech.
	Threshold float64

	// InitialSilence ends capture with no result if no speech starts in time.
	// Zero waits indefinitely.
	InitialSilence time.Duration

	// TrailingSilence ends the utterance after speech.
	TrailingSilence time.Duration

	// MaxUtterance caps the captured speech.
	MaxUtterance time.Duration
}

// DefaultSegmenter returns thresholds tuned for a laptop microphone.
func DefaultSegmenter() Segmenter {
	return Segmenter{
		Threshold:       0.0008,
		InitialSilence:  5 * time.Second,
		TrailingSilence: 800 * time.Millisecond,
		MaxUtterance:    15 * time.Second,
	}
}

// Capture reads src until one utterance is complete and returns its samples.
// A nil result with nil error means no speech was heard. Closing stop ends
// capture early and returns whatever speech was collected.
func (s Segmenter) Capture(ctx context.Context, src audioio.Source, stop <-chan struct{}) ([]int16, error) {
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if stop != nil {
		go func() {
			select {
			case <-stop:
				cancel()
			case <-readCtx.Done():
			}
		}()
	}

	var (
		samples  []int16
		speaking bool
		silence  time.Duration
		speech   time.Duration
	)

	for {
		chunk, err := src.Read(readCtx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return samples, nil
			case ctx.Err() != nil:
				return nil, ctx.Err()
			case readCtx.Err() != nil:
				// stopped by the caller
				return samples, nil
			default:
				return nil, err
			}
		}

		d := chunk.Duration()
		loud := audioio.Level(chunk.Samples) >= s.Threshold

		if !speaking {
			if !loud {
				silence += d
				if s.InitialSilence > 0 && silence >= s.InitialSilence {
					return nil, nil
				}
				continue
			}
			speaking = true
			silence = 0
		}

		samples = append(samples, chunk.Samples...)
		speech += d

		if loud {
			silence = 0
		} else {
			silence += d
			if silence >= s.TrailingSilence {
				return samples, nil
			}
		}
		if s.MaxUtterance > 0 && speech >= s.MaxUtterance {
			return samples, nil
		}
	}
}
