package tts

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/teslashibe/go-tonypi/pkg/audioio"
)

// segmentBreaks are the punctuation marks a reply is split after.
const segmentBreaks = "，。！？；：,.!?;:"

// Runner serializes speaker access. *playback.Coordinator implements it.
type Runner interface {
	Run(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// Writer plays PCM audio. *playback.SinkPlayer implements it.
type Writer interface {
	Write(ctx context.Context, audio audioio.AudioChunk) error
}

// Speaker synthesizes and plays replies.
type Speaker struct {
	provider Provider
	runner   Runner
	out      Writer
	logger   *slog.Logger

	// OnSpeak, when set, is called with each reply before it is played.
	OnSpeak func(text string)
}

// NewSpeaker creates a speaker.
func NewSpeaker(provider Provider, runner Runner, out Writer, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{
		provider: provider,
		runner:   runner,
		out:      out,
		logger:   logger.With("component", "tts.speaker"),
	}
}

// Speak says text and returns when playback has finished. Text with no
// speakable content is a no-op.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	segments := Segment(text)
	if len(segments) == 0 {
		return nil
	}
	if s.OnSpeak != nil {
		s.OnSpeak(text)
	}
	s.logger.Info("speaking", "text", text, "segments", len(segments))

	return s.runner.Run(ctx, "speech", func(ctx context.Context) error {
		for _, seg := range segments {
			res, err := s.provider.Synthesize(ctx, seg)
			if err != nil {
				return err
			}
			if err := s.out.Write(ctx, res.Chunk()); err != nil {
				return err
			}
		}
		return nil
	})
}

// Segment splits text after each punctuation mark, keeping the mark with
// the words before it. Newlines become spaces and segments without any
// letters or digits are dropped.
func Segment(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")

	var (
		out []string
		b   strings.Builder
	)
	emit := func() {
		seg := strings.TrimSpace(b.String())
		b.Reset()
		if speakable(seg) {
			out = append(out, seg)
		} else if seg != "" && len(out) > 0 {
			// Stray punctuation joins the previous segment.
			out[len(out)-1] += seg
		}
	}

	for _, r := range text {
		b.WriteRune(r)
		if strings.ContainsRune(segmentBreaks, r) {
			emit()
		}
	}
	emit()
	return out
}

func speakable(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
