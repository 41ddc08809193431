package audioio

import (
	"context"
	"errors"
	"io"
	"runtime"
	"testing"
	"time"
)

func TestConfig_BufferSize(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.BufferSize(); got != 512 {
		t.Errorf("BufferSize() = %d, want 512", got)
	}
	if got := cfg.FrameDuration(); got != 32*time.Millisecond {
		t.Errorf("FrameDuration() = %v, want 32ms", got)
	}

	cfg.FrameSamples = 0
	cfg.SampleRate = 24000
	cfg.BufferDuration = 20 * time.Millisecond
	if got := cfg.BufferSize(); got != 480 {
		t.Errorf("BufferSize() from duration = %d, want 480", got)
	}
}

func TestMockSource_StartStop(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil)
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
		t.Errorf("Starts() = %d, want 1", src.Starts())
	}

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// Stopping again should be a no-op
	if err := src.Stop(); err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}
}

func TestMockSource_Read(t *testing.T) {
	cfg := DefaultConfig()
	src := NewMockSource(cfg, nil)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(chunk.Samples) != cfg.BufferSize()*cfg.Channels {
		t.Errorf("Expected %d samples, got %d", cfg.BufferSize(), len(chunk.Samples))
	}
	if chunk.SampleRate != cfg.SampleRate {
		t.Errorf("Expected sample rate %d, got %d", cfg.SampleRate, chunk.SampleRate)
	}
}

func TestMockSource_SineWave(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil, WithSineWave(440, 0.5))
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if chunk.Peak() == 0 {
		t.Error("Expected non-zero samples from sine wave generator")
	}
}

func TestMockSource_Script(t *testing.T) {
	chunks := []AudioChunk{
		{Samples: []int16{1, 2}},
		{Samples: []int16{3, 4}},
	}
	deviceErr := errors.New("device unplugged")

	src := NewMockSource(DefaultConfig(), nil, WithScript(chunks, deviceErr))
	defer src.Close()

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := range chunks {
		got, err := src.Read(ctx)
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if got.Samples[0] != chunks[i].Samples[0] {
			t.Errorf("Read %d = %v, want %v", i, got.Samples, chunks[i].Samples)
		}
	}

	if _, err := src.Read(ctx); !errors.Is(err, deviceErr) {
		t.Errorf("Read after script = %v, want %v", err, deviceErr)
	}
}

func TestMockSource_ScriptEOF(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil, WithScript(nil, nil))
	defer src.Close()

	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := src.Read(context.Background()); err != io.EOF {
		t.Errorf("Read = %v, want io.EOF", err)
	}
}

func TestMockSource_Close(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil)

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := src.Start(ctx); err != io.ErrClosedPipe {
		t.Errorf("Expected ErrClosedPipe after close, got: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
}

func TestMockSink_WriteFlushClear(t *testing.T) {
	sink := NewMockSink(DefaultConfig(), nil)
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk := AudioChunk{Samples: []int16{7, 8, 9}, SampleRate: 16000, Channels: 1}
	if err := sink.Write(ctx, chunk); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := sink.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// Cleared audio never reaches Played.
	if err := sink.Write(ctx, chunk); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := sink.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	sink.Flush(ctx)

	if got := sink.Played(); len(got) != 3 {
		t.Errorf("Played() = %v, want 3 samples", got)
	}
	if sink.Stats().ChunksWritten != 2 {
		t.Errorf("ChunksWritten = %d, want 2", sink.Stats().ChunksWritten)
	}
	if sink.Flushes() != 2 || sink.Clears() != 1 {
		t.Errorf("Flushes=%d Clears=%d", sink.Flushes(), sink.Clears())
	}
}

func TestMockSink_NotRunning(t *testing.T) {
	sink := NewMockSink(DefaultConfig(), nil)
	defer sink.Close()

	err := sink.Write(context.Background(), AudioChunk{Samples: make([]int16, 10)})
	if err == nil {
		t.Error("Expected error when writing to non-running sink")
	}
}

func TestAudioChunk_Duration(t *testing.T) {
	chunk := AudioChunk{
		Samples:    make([]int16, 320), // 20ms at 16kHz mono
		SampleRate: 16000,
		Channels:   1,
	}

	if d := chunk.Duration(); d != 20*time.Millisecond {
		t.Errorf("Duration() = %v, want 20ms", d)
	}
}

func TestNewSource_Mock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock

	src, err := NewSource(cfg, nil)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	defer src.Close()

	if src.Name() != "mock" {
		t.Errorf("Name() = %q, want mock", src.Name())
	}
}

func TestNewSource_Unsupported(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "pulse"

	if _, err := NewSource(cfg, nil); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("err = %v, want ErrBackendUnavailable", err)
	}
}

func TestResolveBackend(t *testing.T) {
	if got := ResolveBackend(BackendMock); got != BackendMock {
		t.Errorf("explicit mock = %q", got)
	}
	want := BackendMock
	if runtime.GOOS == "linux" {
		want = BackendALSA
	}
	for _, b := range []Backend{BackendAuto, ""} {
		if got := ResolveBackend(b); got != want {
			t.Errorf("ResolveBackend(%q) = %q, want %q", b, got, want)
		}
	}
}
