package audioio

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// MockSink stands in for the speaker. Written chunks are pending until
// Flush moves them to the played log; Clear drops them unheard.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	// WriteFunc, when set, runs before a chunk is accepted and can fail
	// or delay the write.
	WriteFunc func(ctx context.Context, chunk AudioChunk) error

	mu      sync.Mutex
	live    bool
	closed  bool
	pending []int16
	played  []int16
	flushes int
	clears  int
	stats   SinkStats
}

func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSink{cfg: cfg, logger: logger.With("component", "audioio.mock_sink")}
}

func (m *MockSink) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	m.live = true
	return nil
}

func (m *MockSink) Stop() error {
	m.mu.Lock()
	m.live = false
	m.mu.Unlock()
	return nil
}

func (m *MockSink) Write(ctx context.Context, chunk AudioChunk) error {
	if m.WriteFunc != nil {
		if err := m.WriteFunc(ctx, chunk); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.live || m.closed {
		return io.ErrClosedPipe
	}
	m.pending = append(m.pending, chunk.Samples...)
	m.stats.ChunksWritten++
	m.stats.SamplesWritten += int64(len(chunk.Samples))
	return nil
}

func (m *MockSink) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.played = append(m.played, m.pending...)
	m.pending = m.pending[:0]
	m.flushes++
	return nil
}

func (m *MockSink) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = m.pending[:0]
	m.clears++
	return nil
}

// Played returns a copy of every sample that reached Flush.
func (m *MockSink) Played() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int16(nil), m.played...)
}

func (m *MockSink) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

func (m *MockSink) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

func (m *MockSink) Config() Config { return m.cfg }
func (m *MockSink) Name() string   { return "mock" }

func (m *MockSink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.live = false
	m.mu.Unlock()
	return nil
}

func (m *MockSink) Stats() SinkStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Backend = "mock"
	s.Running = m.live
	return s
}

var _ SinkWithStats = (*MockSink)(nil)
