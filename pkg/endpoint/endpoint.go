// Package endpoint decides when a spoken utterance has ended.
//
// An Endpointer looks at the peak amplitude of each fixed-size frame. Once
// the signal has stayed below the voice threshold for a full silence window
// it reports Stop. A manual cancel (the Enter key in cmd/tonypi) stops
// capture immediately regardless of amplitude.
package endpoint

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-tonypi/pkg/audioio"
)

// Defaults tuned for a USB microphone at 16 kHz.
const (
	DefaultMinAmplitude  = 3000
	DefaultSilenceWindow = 2400 * time.Millisecond
	DefaultFrameSamples  = 512
	DefaultSampleRate    = 16000
	DefaultMaxDuration   = 30 * time.Second
)

// Decision is the result of feeding one frame.
type Decision int

const (
	Continue Decision = iota
	Stop
)

func (d Decision) String() string {
	if d == Stop {
		return "stop"
	}
	return "continue"
}

// Reason explains why capture stopped.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonSilence
	ReasonCancelled
	ReasonMaxDuration
	ReasonNoAudio
)

func (r Reason) String() string {
	switch r {
	case ReasonSilence:
		return "silence"
	case ReasonCancelled:
		return "cancelled"
	case ReasonMaxDuration:
		return "max_duration"
	case ReasonNoAudio:
		return "no_audio"
	default:
		return "none"
	}
}

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("endpoint: invalid config")

// Config configures an Endpointer.
type Config struct {
	// MinAmplitude is the peak sample value that counts as voice.
	MinAmplitude int

	// SilenceWindow is how long the signal must stay quiet to end capture.
	SilenceWindow time.Duration

	FrameSamples int
	SampleRate   int

	// MaxDuration caps a single capture. Zero disables the cap.
	MaxDuration time.Duration
}

// DefaultConfig returns the default endpointing parameters.
func DefaultConfig() Config {
	return Config{
		MinAmplitude:  DefaultMinAmplitude,
		SilenceWindow: DefaultSilenceWindow,
		FrameSamples:  DefaultFrameSamples,
		SampleRate:    DefaultSampleRate,
		MaxDuration:   DefaultMaxDuration,
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	switch {
	case c.MinAmplitude <= 0:
		return fmt.Errorf("%w: min amplitude must be positive", ErrInvalidConfig)
	case c.SilenceWindow <= 0:
		return fmt.Errorf("%w: silence window must be positive", ErrInvalidConfig)
	case c.FrameSamples <= 0 || c.SampleRate <= 0:
		return fmt.Errorf("%w: frame samples and sample rate must be positive", ErrInvalidConfig)
	case c.MaxDuration < 0:
		return fmt.Errorf("%w: max duration must not be negative", ErrInvalidConfig)
	}
	return nil
}

// SilenceFrames is the number of quiet frames that end an utterance.
func (c Config) SilenceFrames() int {
	return durationFrames(c.SilenceWindow, c.SampleRate, c.FrameSamples)
}

// maxFrames is the frame cap derived from MaxDuration, or 0 for none.
func (c Config) maxFrames() int {
	if c.MaxDuration <= 0 {
		return 0
	}
	return durationFrames(c.MaxDuration, c.SampleRate, c.FrameSamples)
}

func durationFrames(d time.Duration, sampleRate, frameSamples int) int {
	return int(int64(d) * int64(sampleRate) / (int64(frameSamples) * int64(time.Second)))
}

// Endpointer tracks one capture. Feed is called from the capture loop;
// Cancel may be called from any goroutine.
type Endpointer struct {
	cfg           Config
	silenceFrames int
	maxFrames     int

	frame      int
	quietStart int // -1 when no quiet period is open
	reason     Reason

	cancelled atomic.Bool
}

// New creates an Endpointer.
func New(cfg Config) (*Endpointer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Endpointer{
		cfg:           cfg,
		silenceFrames: max(cfg.SilenceFrames(), 1),
		maxFrames:     cfg.maxFrames(),
	}
	e.Reset()
	return e, nil
}

// Feed consumes one frame and decides whether capture continues.
func (e *Endpointer) Feed(samples []int16) Decision {
	if e.cancelled.Load() {
		e.reason = ReasonCancelled
		return Stop
	}

	peak := audioio.Peak(samples)
	if peak < e.cfg.MinAmplitude {
		if e.quietStart < 0 {
			e.quietStart = e.frame
		}
	} else {
		e.quietStart = -1
	}

	e.frame++

	if e.quietStart >= 0 && e.frame-e.quietStart >= e.silenceFrames {
		e.reason = ReasonSilence
		return Stop
	}
	if e.maxFrames > 0 && e.frame >= e.maxFrames {
		e.reason = ReasonMaxDuration
		return Stop
	}
	return Continue
}

// Cancel forces Stop on the next Feed.
func (e *Endpointer) Cancel() {
	e.cancelled.Store(true)
}

// Reset prepares for a new capture.
func (e *Endpointer) Reset() {
	e.frame = 0
	e.quietStart = -1
	e.reason = ReasonNone
	e.cancelled.Store(false)
}

// Frames returns the number of frames fed since Reset.
func (e *Endpointer) Frames() int {
	return e.frame
}

// QuietFrames returns how long the current quiet period has lasted.
func (e *Endpointer) QuietFrames() int {
	if e.quietStart < 0 {
		return 0
	}
	return e.frame - e.quietStart
}

// Reason returns why the last Stop was decided.
func (e *Endpointer) Reason() Reason {
	return e.reason
}

// Config returns the endpointer configuration.
func (e *Endpointer) Config() Config {
	return e.cfg
}
