// Package stt transcribes captured utterances.
//
// Client uploads a WAV buffer to an OpenAI-compatible
// /audio/transcriptions endpoint. Transcriber records one utterance from
// the microphone with the endpointer and hands it to a Recognizer.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-tonypi/internal/httpc"
	"github.com/teslashibe/go-tonypi/pkg/audioio"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "whisper-1"
)

// ErrNoAPIKey is returned when the API key is missing.
var ErrNoAPIKey = errors.New("stt: API key required")

// Recognizer turns a complete utterance into text.
type Recognizer interface {
	Recognize(ctx context.Context, audio audioio.AudioChunk) (string, error)
}

// APIError is an error response from the transcription API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stt: API error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether the request may succeed if repeated.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// Config configures the client.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string // ISO-639-1 hint, e.g. "zh"
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option { return func(c *Config) { c.APIKey = key } }

// WithBaseURL overrides the API root.
func WithBaseURL(url string) Option { return func(c *Config) { c.BaseURL = url } }

// WithModel sets the transcription model.
func WithModel(model string) Option { return func(c *Config) { c.Model = model } }

// WithLanguage sets the language hint.
func WithLanguage(lang string) Option { return func(c *Config) { c.Language = lang } }

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option { return func(c *Config) { c.Timeout = d } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Config) { c.Logger = l } }

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:  DefaultBaseURL,
		Model:    DefaultModel,
		Language: "zh",
		Timeout:  30 * time.Second,
		Logger:   slog.Default(),
	}
}

// Client calls the transcription endpoint.
type Client struct {
	cfg    Config
	client *http.Client
	url    string
	logger *slog.Logger
}

// NewClient creates a client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		cfg:    cfg,
		client: httpc.NewClient(cfg.Timeout),
		url:    strings.TrimSuffix(cfg.BaseURL, "/") + "/audio/transcriptions",
		logger: cfg.Logger.With("component", "stt.client"),
	}, nil
}

// Recognize uploads audio as a WAV file and returns the transcript.
func (c *Client) Recognize(ctx context.Context, audio audioio.AudioChunk) (string, error) {
	start := time.Now()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("stt: create form file: %w", err)
	}
	if err := audioio.WriteWAV(part, audio); err != nil {
		return "", err
	}
	if err := w.WriteField("model", c.cfg.Model); err != nil {
		return "", fmt.Errorf("stt: write model field: %w", err)
	}
	if c.cfg.Language != "" {
		if err := w.WriteField("language", c.cfg.Language); err != nil {
			return "", fmt.Errorf("stt: write language field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("stt: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return "", fmt.Errorf("stt: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("stt: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("stt: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return "", &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("stt: parse response: %w", err)
	}

	c.logger.Debug("transcribed", "text", result.Text, "duration", audio.Duration(), "elapsed", time.Since(start))
	return result.Text, nil
}

var _ Recognizer = (*Client)(nil)
