// Package vision asks the vision model about camera frames: which
// rock-paper-scissors gesture a hand shows, and what a scene contains.
package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-tonypi/pkg/camera"
	"github.com/teslashibe/go-tonypi/pkg/inference"
)

// Gesture is a rock-paper-scissors hand shape.
type Gesture int

const (
	None Gesture = iota
	Rock
	Scissors
	Paper
)

func (g Gesture) String() string {
	switch g {
	case Rock:
		return "石头"
	case Scissors:
		return "剪刀"
	case Paper:
		return "布"
	default:
		return "无结果"
	}
}

// ParseGesture finds the gesture named in a model answer. Names are
// checked in the order rock, scissors, paper; anything else is None.
func ParseGesture(text string) Gesture {
	switch {
	case strings.Contains(text, "石头"):
		return Rock
	case strings.Contains(text, "剪刀"):
		return Scissors
	case strings.Contains(text, "布"):
		return Paper
	default:
		return None
	}
}

const (
	gestureSystem = "你是一个猜拳游戏的裁判。你需要识别图片中的手势是石头、剪刀还是布。只返回'石头'、'剪刀'、'布'或'无结果'之一，不要返回其他内容。"
	gesturePrompt = "这个手势是什么？只回答'石头'、'剪刀'、'布'或'无结果'之一，不要回答其它任何内容。"
)

// ErrNoFrame is returned for an empty frame.
var ErrNoFrame = errors.New("vision: empty frame")

// ClassifierConfig is the classifier's model and retry policy.
type ClassifierConfig struct {
	Model          string
	Attempts       int
	AttemptTimeout time.Duration
	RetryDelay     time.Duration
	Logger         *slog.Logger
}

// DefaultClassifierConfig returns three attempts of up to 30s, 3s apart.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Model:          "qwen-vl-max-latest",
		Attempts:       3,
		AttemptTimeout: 30 * time.Second,
		RetryDelay:     3 * time.Second,
		Logger:         slog.Default(),
	}
}

// GestureClassifier recognizes a hand gesture in a photo.
type GestureClassifier struct {
	provider inference.Provider
	cfg      ClassifierConfig
	logger   *slog.Logger
}

// NewGestureClassifier creates a classifier.
func NewGestureClassifier(provider inference.Provider, cfg ClassifierConfig) *GestureClassifier {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &GestureClassifier{
		provider: provider,
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "vision.gesture"),
	}
}

// Classify returns the gesture in frame. An answer that names no gesture
// is None with a nil error. Failed calls are retried; when every attempt
// fails the result is None with the last error.
func (c *GestureClassifier) Classify(ctx context.Context, frame camera.Frame) (Gesture, error) {
	if len(frame.JPEG) == 0 {
		return None, ErrNoFrame
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return None, ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
		}

		answer, err := c.ask(ctx, frame)
		if err == nil {
			g := ParseGesture(answer)
			c.logger.Info("gesture classified", "answer", answer, "gesture", g.String(), "attempt", attempt)
			return g, nil
		}
		if ctx.Err() != nil {
			return None, ctx.Err()
		}
		lastErr = err
		c.logger.Warn("gesture attempt failed", "attempt", attempt, "of", c.cfg.Attempts, "error", err)
	}
	return None, fmt.Errorf("vision: gesture failed after %d attempts: %w", c.cfg.Attempts, lastErr)
}

func (c *GestureClassifier) ask(ctx context.Context, frame camera.Frame) (string, error) {
	if c.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.AttemptTimeout)
		defer cancel()
	}
	resp, err := c.provider.Vision(ctx, &inference.VisionRequest{
		JPEG:   frame.JPEG,
		System: gestureSystem,
		Prompt: gesturePrompt,
		Model:  c.cfg.Model,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}
