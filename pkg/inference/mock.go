package inference

import (
	"context"
	"sync"
)

// Mock implements Provider for testing.
type Mock struct {
	// ChatFunc is called when Chat is invoked.
	ChatFunc func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// VisionFunc is called when Vision is invoked.
	VisionFunc func(ctx context.Context, req *VisionRequest) (*VisionResponse, error)

	mu       sync.Mutex
	requests []ChatRequest
	visions  int
	closed   bool
}

// NewMock creates a mock that answers every chat with "好的" and every
// image with a fixed description.
func NewMock() *Mock {
	return &Mock{
		ChatFunc: func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			return &ChatResponse{
				Message:      NewAssistantMessage("好的"),
				FinishReason: "stop",
			}, nil
		},
		VisionFunc: func(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
			return &VisionResponse{Content: "桌子上有一个杯子"}, nil
		},
	}
}

// Reply returns a mock whose chat answers come from replies in order.
// The last reply repeats once the list is exhausted.
func Reply(replies ...Message) *Mock {
	m := &Mock{}
	var n int
	m.ChatFunc = func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
		msg := replies[min(n, len(replies)-1)]
		n++
		return &ChatResponse{Message: msg}, nil
	}
	return m
}

// WithError returns a mock that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		ChatFunc: func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			return nil, err
		},
		VisionFunc: func(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
			return nil, err
		},
	}
}

// Chat records the request and calls ChatFunc.
func (m *Mock) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	r := *req
	r.Messages = append([]Message(nil), req.Messages...)
	m.requests = append(m.requests, r)
	fn := m.ChatFunc
	m.mu.Unlock()

	if fn == nil {
		return nil, WrapError("mock", ErrNoModel)
	}
	return fn(ctx, req)
}

// Vision calls VisionFunc.
func (m *Mock) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	m.mu.Lock()
	m.visions++
	fn := m.VisionFunc
	m.mu.Unlock()

	if fn == nil {
		return nil, WrapError("mock", ErrNoModel)
	}
	return fn(ctx, req)
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Requests returns copies of all chat requests received.
func (m *Mock) Requests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChatRequest(nil), m.requests...)
}

// LastRequest returns the most recent chat request, or nil.
func (m *Mock) LastRequest() *ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	r := m.requests[len(m.requests)-1]
	return &r
}

// ChatCalls returns the number of Chat calls.
func (m *Mock) ChatCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// VisionCalls returns the number of Vision calls.
func (m *Mock) VisionCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visions
}

var _ Provider = (*Mock)(nil)
