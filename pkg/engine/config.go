package engine

import (
	"errors"
	"log/slog"
	"time"

	"github.com/teslashibe/go-tonypi/pkg/dialogue"
	"github.com/teslashibe/go-tonypi/pkg/hotword"
)

// Config configures an Engine.
type Config struct {
	// SystemPrompt seeds every session history.
	SystemPrompt string

	// ResetEvery reseeds the history after this many turns.
	ResetEvery int

	// ErrorBackoff is the pause after a failed turn.
	ErrorBackoff time.Duration

	// EndOnGoodbye closes the dialogue when an Active utterance contains
	// GoodbyePhrase, without asking the model.
	EndOnGoodbye  bool
	GoodbyePhrase string

	// Tokenizer converts utterances to phonetic tokens for goodbye
	// detection. It defaults to the pinyin tokenizer.
	Tokenizer hotword.Tokenizer

	AckClip          string
	TaskCompleteClip string

	Logger *slog.Logger
}

// DefaultConfig returns the stock dialogue settings.
func DefaultConfig() Config {
	return Config{
		SystemPrompt:     dialogue.DefaultSystemPrompt,
		ResetEvery:       10,
		ErrorBackoff:     time.Second,
		EndOnGoodbye:     true,
		GoodbyePhrase:    "再见",
		AckClip:          "我在.wav",
		TaskCompleteClip: "任务完成.wav",
		Logger:           slog.Default(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ResetEvery <= 0 {
		return errors.New("engine: reset interval must be positive")
	}
	if c.ErrorBackoff < 0 {
		return errors.New("engine: backoff must not be negative")
	}
	return nil
}
