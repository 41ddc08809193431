package endpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-tonypi/pkg/audioio"
)

// ErrNoAudio is returned when the capture device stops delivering frames.
var ErrNoAudio = errors.New("endpoint: no audio from capture device")

// Utterance is the audio captured between start and stop.
type Utterance struct {
	Samples    []int16
	SampleRate int
	Frames     int
	Reason     Reason
}

// Duration returns the length of the captured audio.
func (u Utterance) Duration() time.Duration {
	if u.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(u.Samples)) * time.Second / time.Duration(u.SampleRate)
}

// Empty reports whether nothing was captured.
func (u Utterance) Empty() bool {
	return len(u.Samples) == 0
}

// Capture records one utterance from source. It starts the source, feeds
// every frame to ep until Stop, and returns all frames as one buffer.
//
// A receive on cancel stops capture at once; presses queued before the
// call are discarded. If the source fails, the returned utterance is empty
// and the error wraps ErrNoAudio.
func Capture(ctx context.Context, source audioio.Source, ep *Endpointer, cancel <-chan struct{}) (Utterance, error) {
	ep.Reset()
	drain(cancel)

	cfg := source.Config()
	utt := Utterance{SampleRate: cfg.SampleRate}

	if err := source.Start(ctx); err != nil {
		utt.Reason = ReasonNoAudio
		return utt, fmt.Errorf("%w: %v", ErrNoAudio, err)
	}
	defer source.Stop()

	for {
		select {
		case <-cancel:
			ep.Cancel()
		default:
		}

		chunk, err := source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return Utterance{SampleRate: cfg.SampleRate}, ctx.Err()
			}
			return Utterance{SampleRate: cfg.SampleRate, Reason: ReasonNoAudio},
				fmt.Errorf("%w: %v", ErrNoAudio, err)
		}

		samples := chunk.Samples
		if chunk.Channels == 2 {
			samples = audioio.StereoToMono(samples)
		}
		if chunk.SampleRate > 0 {
			utt.SampleRate = chunk.SampleRate
		}

		select {
		case <-cancel:
			ep.Cancel()
		default:
		}

		if ep.Feed(samples) == Stop {
			// A cancelled frame is not part of the utterance.
			if ep.Reason() != ReasonCancelled {
				utt.Samples = append(utt.Samples, samples...)
			}
			utt.Frames = ep.Frames()
			utt.Reason = ep.Reason()
			return utt, nil
		}
		utt.Samples = append(utt.Samples, samples...)
	}
}

func drain(ch <-chan struct{}) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
