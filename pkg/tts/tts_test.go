package tts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-tonypi/pkg/audioio"
	"github.com/teslashibe/go-tonypi/pkg/tts"
)

func TestSegment(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"chinese", "你好，欢迎使用。今天天气不错！", []string{"你好，", "欢迎使用。", "今天天气不错！"}},
		{"trailing text", "好的，马上", []string{"好的，", "马上"}},
		{"english", "Hi. How are you?", []string{"Hi.", "How are you?"}},
		{"newlines", "第一行\n第二行。", []string{"第一行 第二行。"}},
		{"repeated marks", "真的吗？！", []string{"真的吗？！"}},
		{"only punctuation", "。。", nil},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tts.Segment(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Segment(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

// inlineRunner runs fn on the calling goroutine.
type inlineRunner struct{ runs int }

func (r *inlineRunner) Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	r.runs++
	return fn(ctx)
}

type recordingWriter struct{ chunks []audioio.AudioChunk }

func (w *recordingWriter) Write(ctx context.Context, audio audioio.AudioChunk) error {
	w.chunks = append(w.chunks, audio)
	return nil
}

func TestSpeaker_Speak(t *testing.T) {
	mock := tts.NewMock()
	runner := &inlineRunner{}
	out := &recordingWriter{}
	s := tts.NewSpeaker(mock, runner, out, nil)

	var spoken string
	s.OnSpeak = func(text string) { spoken = text }

	if err := s.Speak(context.Background(), "再见，期待下次与你对话。"); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	if got := mock.Texts(); !reflect.DeepEqual(got, []string{"再见，", "期待下次与你对话。"}) {
		t.Errorf("synthesized %q", got)
	}
	if runner.runs != 1 {
		t.Errorf("runs = %d, want one speaker hold for the whole reply", runner.runs)
	}
	if len(out.chunks) != 2 || out.chunks[0].SampleRate != 24000 {
		t.Errorf("chunks = %d", len(out.chunks))
	}
	if len(out.chunks[0].Samples) != 3*240 {
		t.Errorf("first chunk = %d samples, want 720", len(out.chunks[0].Samples))
	}
	if spoken == "" {
		t.Error("OnSpeak not called")
	}
}

func TestSpeaker_EmptyIsNoop(t *testing.T) {
	runner := &inlineRunner{}
	s := tts.NewSpeaker(tts.NewMock(), runner, &recordingWriter{}, nil)

	if err := s.Speak(context.Background(), "  "); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if runner.runs != 0 {
		t.Error("empty text should not hold the speaker")
	}
}

func TestSpeaker_ProviderError(t *testing.T) {
	apiErr := &tts.APIError{StatusCode: 500, Message: "boom", Provider: "openai"}
	out := &recordingWriter{}
	s := tts.NewSpeaker(tts.WithError(apiErr), &inlineRunner{}, out, nil)

	err := s.Speak(context.Background(), "一，二。")
	var got *tts.APIError
	if !errors.As(err, &got) || got.StatusCode != 500 {
		t.Errorf("Speak = %v, want APIError 500", err)
	}
	if len(out.chunks) != 0 {
		t.Error("nothing should play after a failed synthesis")
	}
}

func TestOpenAI_Synthesize(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Write(make([]byte, 4800)) // 100ms at 24kHz
	}))
	defer server.Close()

	p, err := tts.NewOpenAI(
		tts.WithAPIKey("test-key"),
		tts.WithBaseURL(server.URL+"/v1/"),
		tts.WithVoice(tts.VoiceAlloy),
	)
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	defer p.Close()

	res, err := p.Synthesize(context.Background(), "你好")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if body["response_format"] != "pcm" || body["voice"] != "alloy" || body["input"] != "你好" {
		t.Errorf("payload = %v", body)
	}
	if _, ok := body["speed"]; ok {
		t.Error("default speed should not be sent")
	}
	if res.Duration != 100*time.Millisecond {
		t.Errorf("Duration = %v, want 100ms", res.Duration)
	}
	if res.CharCount != 2 {
		t.Errorf("CharCount = %d, want 2", res.CharCount)
	}
	if c := res.Chunk(); len(c.Samples) != 2400 || c.SampleRate != 24000 {
		t.Errorf("Chunk() = %d samples @ %d", len(c.Samples), c.SampleRate)
	}
}

func TestOpenAI_Errors(t *testing.T) {
	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write(make([]byte, 2))
		}))
		defer server.Close()

		p, _ := tts.NewOpenAI(tts.WithAPIKey("k"), tts.WithBaseURL(server.URL), tts.WithRetry(2, time.Millisecond))
		if _, err := p.Synthesize(context.Background(), "hi"); err != nil {
			t.Fatalf("Synthesize: %v", err)
		}
		if calls.Load() != 3 {
			t.Errorf("calls = %d, want 3", calls.Load())
		}
	})

	t.Run("client error not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"bad key","code":"invalid_api_key"}}`))
		}))
		defer server.Close()

		p, _ := tts.NewOpenAI(tts.WithAPIKey("k"), tts.WithBaseURL(server.URL), tts.WithRetry(3, time.Millisecond))
		_, err := p.Synthesize(context.Background(), "hi")

		var apiErr *tts.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("error = %v, want APIError", err)
		}
		if apiErr.Code != "invalid_api_key" || apiErr.IsRetryable() {
			t.Errorf("apiErr = %+v", apiErr)
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
	})

	t.Run("empty text", func(t *testing.T) {
		p, _ := tts.NewOpenAI(tts.WithAPIKey("k"))
		if _, err := p.Synthesize(context.Background(), " "); !errors.Is(err, tts.ErrEmptyText) {
			t.Errorf("error = %v, want ErrEmptyText", err)
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	if _, err := tts.NewOpenAI(); !errors.Is(err, tts.ErrNoAPIKey) {
		t.Errorf("NewOpenAI() = %v, want ErrNoAPIKey", err)
	}
	if _, err := tts.NewOpenAI(tts.WithAPIKey("k"), tts.WithSpeed(9)); !errors.Is(err, tts.ErrInvalidSpeed) {
		t.Errorf("NewOpenAI(speed 9) = %v, want ErrInvalidSpeed", err)
	}
}
