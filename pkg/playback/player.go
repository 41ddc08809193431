package playback

import (
	"context"

	"github.com/teslashibe/go-tonypi/pkg/audioio"
)

// SinkPlayer plays clips on an audio sink, converting them to the sink's
// rate and channel count.
type SinkPlayer struct {
	sink audioio.Sink
}

// NewSinkPlayer creates a player. The sink must already be started.
func NewSinkPlayer(sink audioio.Sink) *SinkPlayer {
	return &SinkPlayer{sink: sink}
}

// Play writes the clip frame by frame and waits for the device to drain.
// Cancelling ctx drops whatever is still buffered.
func (p *SinkPlayer) Play(ctx context.Context, clip *Clip) error {
	return p.Write(ctx, clip.Audio)
}

// Write plays raw audio through the same conversion path as Play.
func (p *SinkPlayer) Write(ctx context.Context, audio audioio.AudioChunk) error {
	cfg := p.sink.Config()

	samples := audio.Samples
	if audio.Channels == 2 && cfg.Channels == 1 {
		samples = audioio.StereoToMono(samples)
	}
	if audio.SampleRate > 0 && audio.SampleRate != cfg.SampleRate {
		samples = audioio.Resample(samples, audio.SampleRate, cfg.SampleRate)
	}

	frame := cfg.BufferSize() * cfg.Channels
	if frame <= 0 {
		frame = len(samples)
	}

	for off := 0; off < len(samples); off += frame {
		if err := ctx.Err(); err != nil {
			p.sink.Clear()
			return err
		}
		end := min(off+frame, len(samples))
		chunk := audioio.AudioChunk{
			Samples:    samples[off:end],
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
		}
		if err := p.sink.Write(ctx, chunk); err != nil {
			return err
		}
	}

	if err := p.sink.Flush(ctx); err != nil {
		if ctx.Err() != nil {
			p.sink.Clear()
		}
		return err
	}
	return nil
}

var _ Player = (*SinkPlayer)(nil)
