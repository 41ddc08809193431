package inference

import (
	"fmt"
	"log/slog"
	"time"
)

// DefaultBaseURL is DashScope's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

// Config holds client configuration. Requests that leave Model, MaxTokens
// or Temperature at their zero value fall back to these.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	VisionModel string
	MaxTokens   int
	Temperature float64

	// Timeout bounds one HTTP attempt, not the whole retry sequence.
	Timeout time.Duration

	// MaxRetries counts repeats after the first attempt. The n-th repeat
	// waits n*RetryDelay.
	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// DefaultConfig targets qwen-plus for dialogue and qwen-vl-max for vision.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     DefaultBaseURL,
		Model:       "qwen-plus",
		VisionModel: "qwen-vl-max",
		MaxTokens:   1024,
		Timeout:     30 * time.Second,
		MaxRetries:  2,
		RetryDelay:  200 * time.Millisecond,
		Logger:      slog.Default(),
	}
}

// Option mutates a Config before the client is built.
type Option func(*Config)

func WithBaseURL(url string) Option { return func(c *Config) { c.BaseURL = url } }
func WithAPIKey(key string) Option { return func(c *Config) { c.APIKey = key } }
func WithModel(model string) Option { return func(c *Config) { c.Model = model } }
func WithVisionModel(model string) Option { return func(c *Config) { c.VisionModel = model } }
func WithMaxTokens(n int) Option { return func(c *Config) { c.MaxTokens = n } }
func WithTemperature(t float64) Option { return func(c *Config) { c.Temperature = t } }
func WithTimeout(d time.Duration) Option { return func(c *Config) { c.Timeout = d } }
func WithLogger(l *slog.Logger) Option { return func(c *Config) { c.Logger = l } }

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

// Validate reports the first missing or out-of-range field.
func (c *Config) Validate() error {
	switch {
	case c.APIKey == "":
		return ErrNoAPIKey
	case c.Model == "":
		return ErrNoModel
	case c.MaxRetries < 0:
		return fmt.Errorf("inference: max retries must be >= 0, got %d", c.MaxRetries)
	}
	return nil
}
