package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource stands in for the microphone. By default it produces one
// frame of silence per frame period; WithSineWave makes it hum and
// WithScript replays fixed chunks without pacing, then ends.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	toneHz  float64
	toneAmp float64
	step    int // sample index into the tone, wraps every second

	scripted  bool
	script    []AudioChunk
	scriptErr error

	mu     sync.Mutex
	out    chan AudioChunk
	stop   chan struct{}
	live   bool
	closed bool
	endErr error // guarded by mu, set before out is closed

	starts      atomic.Int64
	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave generates a tone of hz at amplitude amp (0..1).
func WithSineWave(hz, amp float64) MockSourceOption {
	return func(m *MockSource) { m.toneHz, m.toneAmp = hz, amp }
}

// WithScript replays chunks in order, then ends with err (io.EOF if nil).
// Every Start replays the script from the beginning.
func WithScript(chunks []AudioChunk, err error) MockSourceOption {
	return func(m *MockSource) {
		m.scripted = true
		m.script = chunks
		m.scriptErr = err
	}
}

func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSource{
		cfg:    cfg,
		logger: logger.With("component", "audioio.mock_source"),
		out:    make(chan AudioChunk),
	}
	close(m.out)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.closed:
		return io.ErrClosedPipe
	case m.live:
		return nil
	}

	m.live = true
	m.endErr = nil
	m.out = make(chan AudioChunk, 10)
	m.stop = make(chan struct{})
	m.starts.Add(1)

	if m.scripted {
		go m.replay(ctx, m.out, m.stop)
	} else {
		go m.generate(ctx, m.out, m.stop)
	}
	m.logger.Debug("started", "scripted", m.scripted, "tone_hz", m.toneHz)
	return nil
}

func (m *MockSource) replay(ctx context.Context, out chan<- AudioChunk, stop <-chan struct{}) {
	for _, chunk := range m.script {
		select {
		case <-ctx.Done():
			close(out)
			return
		case <-stop:
			close(out)
			return
		case out <- chunk:
			m.count(chunk)
		}
	}
	m.mu.Lock()
	m.endErr = m.scriptErr
	m.mu.Unlock()
	close(out)
}

func (m *MockSource) generate(ctx context.Context, out chan<- AudioChunk, stop <-chan struct{}) {
	defer close(out)
	tick := time.NewTicker(m.cfg.FrameDuration())
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-tick.C:
		}
		chunk := m.frame()
		select {
		case out <- chunk:
			m.count(chunk)
		default:
			m.overruns.Add(1)
		}
	}
}

func (m *MockSource) count(c AudioChunk) {
	m.chunksRead.Add(1)
	m.samplesRead.Add(int64(len(c.Samples)))
}

// frame renders the next BufferSize samples of the tone on every channel.
func (m *MockSource) frame() AudioChunk {
	n, ch, rate := m.cfg.BufferSize(), m.cfg.Channels, m.cfg.SampleRate
	samples := make([]int16, n*ch)
	if m.toneHz > 0 {
		for i := 0; i < n; i++ {
			v := int16(m.toneAmp * math.MaxInt16 * math.Sin(2*math.Pi*m.toneHz*float64(m.step)/float64(rate)))
			for c := 0; c < ch; c++ {
				samples[i*ch+c] = v
			}
			m.step = (m.step + 1) % rate
		}
	}
	return AudioChunk{Samples: samples, SampleRate: rate, Channels: ch}
}

func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live {
		m.live = false
		close(m.stop)
	}
	return nil
}

func (m *MockSource) Read(ctx context.Context) (AudioChunk, error) {
	out := m.Stream()
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-out:
		if ok {
			return chunk, nil
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.endErr != nil {
		return AudioChunk{}, m.endErr
	}
	return AudioChunk{}, io.EOF
}

func (m *MockSource) Stream() <-chan AudioChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.out
}

func (m *MockSource) Config() Config { return m.cfg }
func (m *MockSource) Name() string   { return "mock" }

func (m *MockSource) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.Stop()
}

// Starts counts the Start calls that began capture.
func (m *MockSource) Starts() int { return int(m.starts.Load()) }

// Running reports whether the source is between Start and Stop.
func (m *MockSource) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

func (m *MockSource) Stats() SourceStats {
	return SourceStats{
		Backend:     "mock",
		Running:     m.Running(),
		ChunksRead:  m.chunksRead.Load(),
		SamplesRead: m.samplesRead.Load(),
		Overruns:    m.overruns.Load(),
	}
}

var _ SourceWithStats = (*MockSource)(nil)
