package endpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-tonypi/pkg/audioio"
)

func frame(amplitude int16) []int16 {
	s := make([]int16, DefaultFrameSamples)
	for i := range s {
		if i%2 == 0 {
			s[i] = amplitude
		} else {
			s[i] = -amplitude
		}
	}
	return s
}

func newEndpointer(t *testing.T) *Endpointer {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MaxDuration = 0
	ep, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ep
}

func TestConfig_SilenceFrames(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{"default", DefaultConfig(), 75},
		{"one second", Config{SilenceWindow: time.Second, SampleRate: 16000, FrameSamples: 512}, 31},
		{"44.1k", Config{SilenceWindow: 2400 * time.Millisecond, SampleRate: 44100, FrameSamples: 512}, 206},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.SilenceFrames(); got != tt.want {
				t.Errorf("SilenceFrames() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero amplitude", func(c *Config) { c.MinAmplitude = 0 }},
		{"zero window", func(c *Config) { c.SilenceWindow = 0 }},
		{"zero frame", func(c *Config) { c.FrameSamples = 0 }},
		{"zero rate", func(c *Config) { c.SampleRate = 0 }},
		{"negative max", func(c *Config) { c.MaxDuration = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestEndpointer_StopsExactlyAtWindow(t *testing.T) {
	ep := newEndpointer(t)
	quiet := frame(100)

	for i := 1; i < 75; i++ {
		if ep.Feed(quiet) == Stop {
			t.Fatalf("stopped early after %d quiet frames", i)
		}
	}
	if ep.Feed(quiet) != Stop {
		t.Fatal("expected Stop on the 75th quiet frame")
	}
	if ep.Reason() != ReasonSilence {
		t.Errorf("Reason() = %v, want silence", ep.Reason())
	}
}

func TestEndpointer_SpeechThenSilence(t *testing.T) {
	ep := newEndpointer(t)

	for i := 0; i < 20; i++ {
		if ep.Feed(frame(8000)) == Stop {
			t.Fatalf("stopped during speech at frame %d", i)
		}
	}

	n := 0
	for ep.Feed(frame(0)) == Continue {
		n++
		if n > 1000 {
			t.Fatal("never stopped")
		}
	}
	if n+1 != 75 {
		t.Errorf("quiet frames before stop = %d, want 75", n+1)
	}
	if ep.Frames() != 95 {
		t.Errorf("Frames() = %d, want 95", ep.Frames())
	}
}

func TestEndpointer_SpeechResumesClosesQuiet(t *testing.T) {
	ep := newEndpointer(t)

	for i := 0; i < 70; i++ {
		ep.Feed(frame(10))
	}
	if ep.QuietFrames() != 70 {
		t.Fatalf("QuietFrames() = %d, want 70", ep.QuietFrames())
	}

	// Exactly at the threshold counts as voice.
	if ep.Feed(frame(DefaultMinAmplitude)) != Continue {
		t.Fatal("voice frame should continue")
	}
	if ep.QuietFrames() != 0 {
		t.Errorf("QuietFrames() after voice = %d, want 0", ep.QuietFrames())
	}

	for i := 0; i < 74; i++ {
		if ep.Feed(frame(10)) == Stop {
			t.Fatalf("stopped early at quiet frame %d after resume", i+1)
		}
	}
	if ep.Feed(frame(10)) != Stop {
		t.Error("expected Stop after a full window following resume")
	}
}

func TestEndpointer_CancelOverridesSpeech(t *testing.T) {
	ep := newEndpointer(t)
	ep.Feed(frame(9000))
	ep.Cancel()

	if ep.Feed(frame(9000)) != Stop {
		t.Fatal("Cancel must force Stop even while speaking")
	}
	if ep.Reason() != ReasonCancelled {
		t.Errorf("Reason() = %v, want cancelled", ep.Reason())
	}

	ep.Reset()
	if ep.Feed(frame(9000)) != Continue {
		t.Error("Reset should clear the cancel")
	}
}

func TestEndpointer_MaxDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDuration = 320 * time.Millisecond // 10 frames
	ep, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 9; i++ {
		if ep.Feed(frame(9000)) == Stop {
			t.Fatalf("stopped at frame %d", i+1)
		}
	}
	if ep.Feed(frame(9000)) != Stop || ep.Reason() != ReasonMaxDuration {
		t.Errorf("expected max duration stop, got reason %v", ep.Reason())
	}
}

func chunks(n int, amplitude int16) []audioio.AudioChunk {
	out := make([]audioio.AudioChunk, n)
	for i := range out {
		out[i] = audioio.AudioChunk{Samples: frame(amplitude), SampleRate: 16000, Channels: 1}
	}
	return out
}

func TestCapture_SilenceOnly(t *testing.T) {
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil, audioio.WithScript(chunks(80, 0), nil))
	defer src.Close()

	utt, err := Capture(context.Background(), src, newEndpointer(t), nil)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if utt.Reason != ReasonSilence {
		t.Errorf("Reason = %v, want silence", utt.Reason)
	}
	if utt.Frames != 75 {
		t.Errorf("Frames = %d, want 75", utt.Frames)
	}
	if audioio.Peak(utt.Samples) != 0 {
		t.Error("silence capture should carry no speech content")
	}
	if got := utt.Duration(); got != 2400*time.Millisecond {
		t.Errorf("Duration() = %v, want 2.4s", got)
	}
	if src.Running() {
		t.Error("source should be stopped after capture")
	}
}

func TestCapture_SpeechKept(t *testing.T) {
	script := append(chunks(5, 12000), chunks(75, 0)...)
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil, audioio.WithScript(script, nil))
	defer src.Close()

	utt, err := Capture(context.Background(), src, newEndpointer(t), nil)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(utt.Samples) != 80*DefaultFrameSamples {
		t.Errorf("samples = %d, want %d", len(utt.Samples), 80*DefaultFrameSamples)
	}
	if audioio.Peak(utt.Samples[:DefaultFrameSamples]) != 12000 {
		t.Error("speech frames should lead the utterance")
	}
}

func TestCapture_DeviceFailure(t *testing.T) {
	deviceErr := errors.New("overrun")
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil, audioio.WithScript(chunks(3, 9000), deviceErr))
	defer src.Close()

	utt, err := Capture(context.Background(), src, newEndpointer(t), nil)
	if !errors.Is(err, ErrNoAudio) {
		t.Fatalf("Capture error = %v, want ErrNoAudio", err)
	}
	if !utt.Empty() || utt.Reason != ReasonNoAudio {
		t.Errorf("utterance = %d samples, reason %v; want empty no_audio", len(utt.Samples), utt.Reason)
	}
}

// pressingSource presses the cancel key while delivering frame n.
type pressingSource struct {
	*audioio.MockSource
	cancel chan struct{}
	n      int
	reads  int
}

func (p *pressingSource) Read(ctx context.Context) (audioio.AudioChunk, error) {
	p.reads++
	if p.reads == p.n {
		p.cancel <- struct{}{}
	}
	return p.MockSource.Read(ctx)
}

func TestCapture_ManualCancel(t *testing.T) {
	cancel := make(chan struct{}, 1)
	cancel <- struct{}{} // stale press from before capture

	mock := audioio.NewMockSource(audioio.DefaultConfig(), nil, audioio.WithScript(chunks(50, 15000), nil))
	defer mock.Close()
	src := &pressingSource{MockSource: mock, cancel: cancel, n: 4}

	utt, err := Capture(context.Background(), src, newEndpointer(t), cancel)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if utt.Reason != ReasonCancelled {
		t.Errorf("Reason = %v, want cancelled", utt.Reason)
	}
	if len(utt.Samples) != 3*DefaultFrameSamples {
		t.Errorf("samples = %d, want 3 frames before the press", len(utt.Samples))
	}
}

func TestCapture_ContextCancelled(t *testing.T) {
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Capture(ctx, src, newEndpointer(t), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Capture error = %v, want deadline exceeded", err)
	}
}
