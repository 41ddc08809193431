package tts

import (
	"log/slog"
	"time"
)

// Config configures a speech provider.
type Config struct {
	APIKey  string
	BaseURL string // OpenAI-compatible root, e.g. https://api.openai.com/v1
	Voice   string
	Model   string

	// Speed multiplies the speaking rate, 0.25 to 4.0.
	Speed float64

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// DefaultConfig speaks with the nova voice on tts-1 at normal speed.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    DefaultBaseURL,
		Voice:      VoiceNova,
		Model:      ModelTTS1,
		Speed:      1,
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
		Logger:     slog.Default(),
	}
}

// Option mutates a Config before the provider is built.
type Option func(*Config)

func WithAPIKey(key string) Option { return func(c *Config) { c.APIKey = key } }
func WithBaseURL(url string) Option { return func(c *Config) { c.BaseURL = url } }
func WithVoice(voice string) Option { return func(c *Config) { c.Voice = voice } }
func WithModel(model string) Option { return func(c *Config) { c.Model = model } }
func WithSpeed(speed float64) Option { return func(c *Config) { c.Speed = speed } }
func WithTimeout(d time.Duration) Option { return func(c *Config) { c.Timeout = d } }
func WithLogger(logger *slog.Logger) Option { return func(c *Config) { c.Logger = logger } }

// WithRetry sets how often 429 and 5xx answers are repeated.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// Apply runs opts in order.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate rejects a missing key or an out-of-range speed.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	if c.Speed < 0.25 || c.Speed > 4 {
		return ErrInvalidSpeed
	}
	return nil
}
