package vosk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeServer answers each audio frame with the next scripted response.
type fakeServer struct {
	mu        sync.Mutex
	responses []string
	next      int
	configs   []map[string]any
	frames    int
	eofs      int
	conns     int
}

func (f *fakeServer) handler(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		f.mu.Lock()
		f.conns++
		f.mu.Unlock()

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			if msgType == websocket.TextMessage {
				var msg map[string]any
				json.Unmarshal(data, &msg)
				if cfg, ok := msg["config"].(map[string]any); ok {
					f.mu.Lock()
					f.configs = append(f.configs, cfg)
					f.mu.Unlock()
					continue
				}
				if _, ok := msg["eof"]; ok {
					f.mu.Lock()
					f.eofs++
					f.mu.Unlock()
					conn.WriteMessage(websocket.TextMessage, []byte(`{"text": ""}`))
					return
				}
			}

			f.mu.Lock()
			f.frames++
			resp := `{"partial": ""}`
			if f.next < len(f.responses) {
				resp = f.responses[f.next]
				f.next++
			}
			f.mu.Unlock()

			conn.WriteMessage(websocket.TextMessage, []byte(resp))
		}
	}
}

func newTestClient(t *testing.T, f *fakeServer) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.URL = "ws" + strings.TrimPrefix(srv.URL, "http")
	cfg.Timeout = 2 * time.Second
	c := New(cfg)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_Accept(t *testing.T) {
	f := &fakeServer{responses: []string{
		`{"partial": "小"}`,
		`{"partial": "小新"}`,
		`{"result": [], "text": "小新 小新"}`,
	}}
	c := newTestClient(t, f)
	ctx := context.Background()

	want := []string{"小", "小新", "小新 小新"}
	for i, w := range want {
		got, err := c.Accept(ctx, make([]int16, 512))
		if err != nil {
			t.Fatalf("Accept %d: %v", i, err)
		}
		if got != w {
			t.Errorf("Accept %d = %q, want %q", i, got, w)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conns != 1 {
		t.Errorf("conns = %d, want 1", f.conns)
	}
	if len(f.configs) != 1 || f.configs[0]["sample_rate"] != float64(16000) {
		t.Errorf("configs = %v, want one with sample_rate 16000", f.configs)
	}
	if f.frames != 3 {
		t.Errorf("frames = %d, want 3", f.frames)
	}
}

func TestClient_ResetRedials(t *testing.T) {
	f := &fakeServer{}
	c := newTestClient(t, f)
	ctx := context.Background()

	// Reset before any audio is a no-op.
	if err := c.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if _, err := c.Accept(ctx, make([]int16, 512)); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := c.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := c.Accept(ctx, make([]int16, 512)); err != nil {
		t.Fatalf("Accept after reset: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conns != 2 {
		t.Errorf("conns = %d, want 2", f.conns)
	}
	if f.eofs != 1 {
		t.Errorf("eofs = %d, want 1", f.eofs)
	}
}

func TestClient_DialError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "ws://127.0.0.1:1"
	cfg.Timeout = 500 * time.Millisecond
	c := New(cfg)
	defer c.Close()

	if _, err := c.Accept(context.Background(), make([]int16, 10)); err == nil {
		t.Error("expected dial error")
	}
}

func TestClient_BadJSON(t *testing.T) {
	f := &fakeServer{responses: []string{`not json`}}
	c := newTestClient(t, f)

	if _, err := c.Accept(context.Background(), make([]int16, 10)); err == nil {
		t.Error("expected decode error")
	}
}

func TestClient_Closed(t *testing.T) {
	c := New(DefaultConfig())
	c.Close()
	if _, err := c.Accept(context.Background(), nil); err != ErrClosed {
		t.Errorf("Accept after Close = %v, want ErrClosed", err)
	}
}
