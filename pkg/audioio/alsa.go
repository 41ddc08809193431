//go:build linux

package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
)

// ALSASource captures audio by reading raw PCM from an arecord subprocess.
// This is the production implementation for the Raspberry Pi.
type ALSASource struct {
	cfg    Config
	logger *slog.Logger
	device string

	mu       sync.Mutex
	running  bool
	closed   bool
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	streamCh chan AudioChunk
	done     chan struct{}
	readErr  atomic.Value // error that ended capture

	// Stats
	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

func newALSASource(cfg Config, logger *slog.Logger) (*ALSASource, error) {
	if _, err := exec.LookPath("arecord"); err != nil {
		return nil, fmt.Errorf("%w: arecord not found: %v", ErrBackendUnavailable, err)
	}

	device := cfg.Device
	if device == "" {
		device = "default"
	}

	return &ALSASource{
		cfg:      cfg,
		logger:   logger.With("component", "audioio.alsa_source"),
		device:   device,
		streamCh: make(chan AudioChunk),
	}, nil
}

// Start launches arecord and begins delivering chunks.
func (s *ALSASource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	cctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cctx, "arecord", alsaArgs(s.cfg, s.device)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start arecord: %w", err)
	}

	s.cmd = cmd
	s.cancel = cancel
	s.running = true
	s.streamCh = make(chan AudioChunk, 16)
	s.done = make(chan struct{})
	s.readErr = atomic.Value{}

	go s.captureLoop(stdout, s.streamCh, s.done)

	s.logger.Info("ALSA audio source started", "device", s.device)
	return nil
}

func (s *ALSASource) captureLoop(r io.Reader, out chan<- AudioChunk, done chan struct{}) {
	defer close(done)
	defer close(out)

	buf := make([]byte, s.cfg.BufferBytes())
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.readErr.Store(err)
			} else {
				s.readErr.Store(io.EOF)
			}
			return
		}

		chunk := AudioChunk{
			Samples:    BytesToSamples(buf),
			SampleRate: s.cfg.SampleRate,
			Channels:   s.cfg.Channels,
		}

		select {
		case out <- chunk:
			s.chunksRead.Add(1)
			s.samplesRead.Add(int64(len(chunk.Samples)))
		default:
			s.overruns.Add(1)
			s.logger.Debug("ALSA source: buffer full, dropping chunk")
		}
	}
}

// Stop terminates arecord.
func (s *ALSASource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel, cmd, done := s.cancel, s.cmd, s.done
	s.mu.Unlock()

	cancel()
	<-done
	_ = cmd.Wait()

	s.logger.Info("ALSA audio source stopped")
	return nil
}

// Read reads the next audio chunk.
func (s *ALSASource) Read(ctx context.Context) (AudioChunk, error) {
	s.mu.Lock()
	ch := s.streamCh
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			if err, _ := s.readErr.Load().(error); err != nil {
				return AudioChunk{}, err
			}
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the audio chunk channel.
func (s *ALSASource) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the audio configuration.
func (s *ALSASource) Config() Config { return s.cfg }

// Name returns "alsa".
func (s *ALSASource) Name() string { return "alsa" }

// Close releases resources.
func (s *ALSASource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

// Stats returns source statistics.
func (s *ALSASource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     "alsa",
	}
}

var _ SourceWithStats = (*ALSASource)(nil)

// ALSASink plays audio by piping raw PCM into an aplay subprocess.
// Flush closes the pipe and waits for aplay to drain; the next Write
// starts a fresh process.
type ALSASink struct {
	cfg    Config
	logger *slog.Logger
	device string

	mu      sync.Mutex
	running bool
	closed  bool
	cmd     *exec.Cmd
	stdin   io.WriteCloser

	// Stats
	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
}

func newALSASink(cfg Config, logger *slog.Logger) (*ALSASink, error) {
	if _, err := exec.LookPath("aplay"); err != nil {
		return nil, fmt.Errorf("%w: aplay not found: %v", ErrBackendUnavailable, err)
	}

	device := cfg.Device
	if device == "" {
		device = "default"
	}

	return &ALSASink{
		cfg:    cfg,
		logger: logger.With("component", "audioio.alsa_sink"),
		device: device,
	}, nil
}

// Start marks the sink as accepting audio.
func (s *ALSASink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	s.running = true
	s.logger.Info("ALSA audio sink started", "device", s.device)
	return nil
}

// Stop kills any running aplay.
func (s *ALSASink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	s.killLocked()
	return nil
}

// Write sends audio to aplay, starting it if needed.
func (s *ALSASink) Write(ctx context.Context, chunk AudioChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if !s.running {
		return fmt.Errorf("sink not running")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.cmd == nil {
		if err := s.startLocked(chunk); err != nil {
			return err
		}
	}

	if _, err := s.stdin.Write(SamplesToBytes(chunk.Samples)); err != nil {
		// aplay died, the next write restarts it
		s.killLocked()
		return fmt.Errorf("write to aplay: %w", err)
	}

	s.chunksWritten.Add(1)
	s.samplesWritten.Add(int64(len(chunk.Samples)))
	return nil
}

func (s *ALSASink) startLocked(chunk AudioChunk) error {
	cfg := s.cfg
	if chunk.SampleRate > 0 {
		cfg.SampleRate = chunk.SampleRate
	}
	if chunk.Channels > 0 {
		cfg.Channels = chunk.Channels
	}

	cmd := exec.Command("aplay", alsaArgs(cfg, s.device)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start aplay: %w", err)
	}
	s.cmd = cmd
	s.stdin = stdin
	return nil
}

func (s *ALSASink) killLocked() {
	if s.cmd == nil {
		return
	}
	s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	s.cmd = nil
	s.stdin = nil
}

// Flush waits for buffered audio to play.
func (s *ALSASink) Flush(ctx context.Context) error {
	s.mu.Lock()
	cmd, stdin := s.cmd, s.stdin
	s.cmd, s.stdin = nil, nil
	s.mu.Unlock()

	if cmd == nil {
		return nil
	}
	stdin.Close()

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case err := <-waitErr:
		if err != nil {
			return fmt.Errorf("aplay: %w", err)
		}
		return nil
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-waitErr
		return ctx.Err()
	}
}

// Clear discards buffered audio by killing aplay.
func (s *ALSASink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killLocked()
	return nil
}

// Config returns the audio configuration.
func (s *ALSASink) Config() Config { return s.cfg }

// Name returns "alsa".
func (s *ALSASink) Name() string { return "alsa" }

// Close releases resources.
func (s *ALSASink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

// Stats returns sink statistics.
func (s *ALSASink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SinkStats{
		ChunksWritten:  s.chunksWritten.Load(),
		SamplesWritten: s.samplesWritten.Load(),
		Running:        running,
		Backend:        "alsa",
	}
}

var _ SinkWithStats = (*ALSASink)(nil)

func alsaArgs(cfg Config, device string) []string {
	return []string{
		"-q",
		"-D", device,
		"-t", "raw",
		"-f", "S16_LE",
		"-r", strconv.Itoa(cfg.SampleRate),
		"-c", strconv.Itoa(cfg.Channels),
	}
}
