// Package audioio is the robot's microphone and speaker.
//
// On the Raspberry Pi both ends are arecord/aplay subprocesses speaking raw
// PCM16 over pipes; elsewhere, and in tests, a scripted mock stands in.
// The hotword listener and utterance capture read fixed-size frames from a
// Source, and the playback coordinator writes clips to a single Sink.
package audioio

import (
	"fmt"
	"time"
)

// Backend names an audio implementation.
type Backend string

const (
	BackendAuto Backend = "auto" // ALSA on Linux, mock elsewhere
	BackendALSA Backend = "alsa"
	BackendMock Backend = "mock"
)

// Config describes one audio device.
type Config struct {
	Backend    Backend `yaml:"backend" json:"backend"`
	Device     string  `yaml:"device" json:"device"` // ALSA name, e.g. "plughw:1,0"
	SampleRate int     `yaml:"sample_rate" json:"sample_rate"`
	Channels   int     `yaml:"channels" json:"channels"`

	// FrameSamples fixes the samples per channel in each chunk. When zero
	// the frame is derived from BufferDuration.
	FrameSamples   int           `yaml:"frame_samples" json:"frame_samples"`
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`
}

// DefaultConfig is 16 kHz mono in 512-sample frames, the framing both the
// hotword recognizer and the endpointer expect.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     16000,
		Channels:       1,
		FrameSamples:   512,
		BufferDuration: 32 * time.Millisecond,
	}
}

// Validate rejects configurations that cannot produce a frame.
func (c *Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	case c.Channels <= 0:
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	case c.FrameSamples <= 0 && c.BufferDuration <= 0:
		return fmt.Errorf("frame_samples or buffer_duration must be positive")
	}
	return nil
}

// BufferSize is the samples per channel in one chunk.
func (c *Config) BufferSize() int {
	if c.FrameSamples > 0 {
		return c.FrameSamples
	}
	return int(int64(c.SampleRate) * int64(c.BufferDuration) / int64(time.Second))
}

// FrameDuration is the playing time of one chunk.
func (c *Config) FrameDuration() time.Duration {
	return time.Duration(c.BufferSize()) * time.Second / time.Duration(c.SampleRate)
}

// BufferBytes is the PCM16 byte size of one chunk across all channels.
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}
