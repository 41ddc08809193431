package hotword

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-tonypi/pkg/audioio"
)

// DefaultMaxPartialTokens is the partial length that forces a recognizer reset.
const DefaultMaxPartialTokens = 15

// PartialRecognizer is a streaming speech recognizer that exposes its
// running hypothesis after every chunk of audio.
type PartialRecognizer interface {
	// Accept feeds PCM samples and returns the current hypothesis text.
	Accept(ctx context.Context, samples []int16) (string, error)

	// Reset discards the hypothesis so the next Accept starts from empty text.
	Reset(ctx context.Context) error
}

// Listener waits on the microphone until a registered phrase is heard.
type Listener struct {
	source     audioio.Source
	recognizer PartialRecognizer
	matcher    *Matcher
	tokenizer  Tokenizer
	maxTokens  int
	logger     *slog.Logger

	// OnPartial, when set, receives every new hypothesis.
	OnPartial func(text string)
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithMaxPartialTokens sets the partial length that triggers a recognizer reset.
func WithMaxPartialTokens(n int) ListenerOption {
	return func(l *Listener) {
		if n > 0 {
			l.maxTokens = n
		}
	}
}

// WithTokenizer replaces the default pinyin tokenizer.
func WithTokenizer(t Tokenizer) ListenerOption {
	return func(l *Listener) {
		l.tokenizer = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = logger
	}
}

// NewListener creates a listener over a shared microphone source.
func NewListener(source audioio.Source, recognizer PartialRecognizer, matcher *Matcher, opts ...ListenerOption) *Listener {
	l := &Listener{
		source:     source,
		recognizer: recognizer,
		matcher:    matcher,
		tokenizer:  NewPinyinTokenizer(),
		maxTokens:  DefaultMaxPartialTokens,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "hotword.listener")
	return l
}

// Listen captures audio until a pattern matches and returns its signal.
// The microphone is started on entry and stopped on return, so another
// consumer can use it between calls. Match progress from an earlier call
// does not carry over.
func (l *Listener) Listen(ctx context.Context) (Signal, error) {
	l.matcher.Reset()
	if err := l.recognizer.Reset(ctx); err != nil {
		return None, fmt.Errorf("hotword: reset recognizer: %w", err)
	}

	if err := l.source.Start(ctx); err != nil {
		return None, fmt.Errorf("hotword: start microphone: %w", err)
	}
	defer l.source.Stop()

	var fed []string
	for {
		chunk, err := l.source.Read(ctx)
		if err != nil {
			return None, fmt.Errorf("hotword: read microphone: %w", err)
		}

		text, err := l.recognizer.Accept(ctx, chunk.Samples)
		if err != nil {
			return None, fmt.Errorf("hotword: recognize: %w", err)
		}

		cur := l.tokenizer.Tokens(text)
		fresh, revised := newTokens(fed, cur)
		fed = cur
		if revised {
			// Progress built on the replaced words is stale; rescan the
			// whole corrected hypothesis.
			l.matcher.Reset()
			fresh = cur
		}

		if len(fresh) > 0 {
			l.logger.Debug("partial", "text", text, "new", fresh)
			if l.OnPartial != nil {
				l.OnPartial(text)
			}
		}

		if sig, ok := l.matcher.Feed(fresh); ok {
			l.logger.Info("hotword matched", "signal", int(sig), "text", text)
			if err := l.recognizer.Reset(ctx); err != nil {
				l.logger.Warn("recognizer reset failed", "error", err)
			}
			return sig, nil
		}

		// Long partials slow the recognizer; start a fresh hypothesis.
		// Match progress is kept across the reset.
		if countPhonetic(cur) > l.maxTokens {
			l.logger.Debug("partial too long, resetting recognizer", "tokens", len(cur))
			if err := l.recognizer.Reset(ctx); err != nil {
				return None, fmt.Errorf("hotword: reset recognizer: %w", err)
			}
			fed = nil
		}
	}
}

// newTokens returns the part of cur not already covered by prev, and
// whether the recognizer rewrote any token of prev.
func newTokens(prev, cur []string) ([]string, bool) {
	n := 0
	for n < len(prev) && n < len(cur) && prev[n] == cur[n] {
		n++
	}
	return cur[n:], n < len(prev)
}

func countPhonetic(tokens []string) int {
	n := 0
	for _, tok := range tokens {
		if !IsSeparator(tok) {
			n++
		}
	}
	return n
}
