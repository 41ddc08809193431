// Package vosk is a client for a Vosk speech recognition server.
//
// The server speaks a simple websocket protocol: the client sends a JSON
// config message, then binary PCM16 frames. Every frame is answered with
// either {"partial": "..."} or, at an utterance boundary, {"text": "..."}.
package vosk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-tonypi/pkg/audioio"
	"github.com/teslashibe/go-tonypi/pkg/hotword"
)

// Default settings.
const (
	DefaultURL        = "ws://127.0.0.1:2700"
	DefaultSampleRate = 16000
	DefaultTimeout    = 5 * time.Second
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("vosk: client closed")

// Config configures the client.
type Config struct {
	URL        string
	SampleRate int

	// Timeout bounds the handshake and each frame round trip.
	Timeout time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns a config for a local server.
func DefaultConfig() Config {
	return Config{
		URL:        DefaultURL,
		SampleRate: DefaultSampleRate,
		Timeout:    DefaultTimeout,
		Logger:     slog.Default(),
	}
}

// Result is one server response.
type Result struct {
	Partial string `json:"partial,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Client streams audio to the server and returns running hypotheses.
// The connection is dialed lazily and redialed after Reset.
type Client struct {
	cfg    Config
	logger *slog.Logger
	dialer websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// New creates a client. Nothing is dialed until the first Accept.
func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "vosk.client"),
		dialer: websocket.Dialer{HandshakeTimeout: cfg.Timeout},
	}
}

// Accept sends one frame of audio and returns the current hypothesis.
// At an utterance boundary the server's final text is returned, and the
// next frame starts a new hypothesis.
func (c *Client) Accept(ctx context.Context, samples []int16) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrClosed
	}
	if err := c.ensureConn(ctx); err != nil {
		return "", err
	}

	res, err := c.roundTrip(ctx, websocket.BinaryMessage, audioio.SamplesToBytes(samples))
	if err != nil {
		c.dropConn()
		return "", err
	}

	if res.Text != "" {
		return res.Text, nil
	}
	return res.Partial, nil
}

// Reset ends the current recognition stream. The server finalizes it and
// the next Accept starts from an empty hypothesis on a new stream.
func (c *Client) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	if _, err := c.roundTrip(ctx, websocket.TextMessage, []byte(`{"eof" : 1}`)); err != nil {
		c.logger.Debug("eof round trip failed", "error", err)
	}
	c.dropConn()
	return nil
}

// Close releases the connection. The client cannot be used afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.dropConn()
	return nil
}

func (c *Client) ensureConn(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("vosk: dial %s (status %d): %w", c.cfg.URL, resp.StatusCode, err)
		}
		return fmt.Errorf("vosk: dial %s: %w", c.cfg.URL, err)
	}

	conn.SetWriteDeadline(time.Now().Add(c.cfg.Timeout))
	cfgMsg := map[string]any{
		"config": map[string]any{"sample_rate": c.cfg.SampleRate},
	}
	if err := conn.WriteJSON(cfgMsg); err != nil {
		conn.Close()
		return fmt.Errorf("vosk: send config: %w", err)
	}

	c.conn = conn
	c.logger.Debug("connected", "url", c.cfg.URL, "sample_rate", c.cfg.SampleRate)
	return nil
}

func (c *Client) roundTrip(ctx context.Context, msgType int, payload []byte) (Result, error) {
	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	// Unblock the read if ctx is cancelled mid-frame.
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(msgType, payload); err != nil {
		return Result{}, fmt.Errorf("vosk: write: %w", err)
	}

	c.conn.SetReadDeadline(deadline)
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("vosk: read: %w", err)
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return Result{}, fmt.Errorf("vosk: decode %q: %w", data, err)
	}
	return res, nil
}

func (c *Client) dropConn() {
	if c.conn == nil {
		return
	}
	c.conn.Close()
	c.conn = nil
}

var _ hotword.PartialRecognizer = (*Client)(nil)
