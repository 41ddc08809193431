package stt

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-tonypi/pkg/audioio"
	"github.com/teslashibe/go-tonypi/pkg/endpoint"
)

// Transcriber records one utterance and returns its text.
type Transcriber struct {
	source     audioio.Source
	endpointer *endpoint.Endpointer
	recognizer Recognizer
	cancel     <-chan struct{}
	logger     *slog.Logger

	// OnUtterance, when set, is called after each capture.
	OnUtterance func(utt endpoint.Utterance)
}

// NewTranscriber creates a transcriber. A receive on cancel ends the
// current capture early; cancel may be nil.
func NewTranscriber(source audioio.Source, ep *endpoint.Endpointer, rec Recognizer, cancel <-chan struct{}, logger *slog.Logger) *Transcriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcriber{
		source:     source,
		endpointer: ep,
		recognizer: rec,
		cancel:     cancel,
		logger:     logger.With("component", "stt.transcriber"),
	}
}

// Transcribe captures an utterance and recognizes it. It returns "" when
// nothing usable was heard: a dead microphone, an empty capture, or audio
// that never rose above the voice threshold.
func (t *Transcriber) Transcribe(ctx context.Context) (string, error) {
	utt, err := endpoint.Capture(ctx, t.source, t.endpointer, t.cancel)
	if t.OnUtterance != nil {
		t.OnUtterance(utt)
	}
	if err != nil {
		if errors.Is(err, endpoint.ErrNoAudio) {
			t.logger.Warn("capture failed, treating as empty utterance", "error", err)
			return "", nil
		}
		return "", err
	}

	t.logger.Debug("utterance captured",
		"frames", utt.Frames,
		"duration", utt.Duration(),
		"reason", utt.Reason.String(),
	)

	if utt.Empty() || audioio.Peak(utt.Samples) < t.endpointer.Config().MinAmplitude {
		return "", nil
	}

	text, err := t.recognizer.Recognize(ctx, audioio.AudioChunk{
		Samples:    utt.Samples,
		SampleRate: utt.SampleRate,
		Channels:   1,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
