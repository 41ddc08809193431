// Package tts turns assistant replies into speech on the robot's speaker.
//
// A Provider synthesizes one piece of text into PCM audio. A Speaker splits
// a reply at punctuation, synthesizes each segment, and plays them in order
// while holding the playback coordinator, so cue clips never overlap speech.
//
//	provider, _ := tts.NewOpenAI(
//	    tts.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    tts.WithVoice(tts.VoiceNova),
//	)
//	speaker := tts.NewSpeaker(provider, coordinator, player)
//	speaker.Speak(ctx, "你好，我是小新。")
package tts

import (
	"context"
	"time"

	"github.com/teslashibe/go-tonypi/pkg/audioio"
)

// Provider synthesizes speech.
type Provider interface {
	// Synthesize converts text to audio, returning the complete buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult is one synthesized segment.
type AudioResult struct {
	// Audio is raw little-endian PCM16.
	Audio []byte

	Format AudioFormat

	// Duration is the playback length of Audio.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the request round trip in milliseconds.
	LatencyMs int64
}

// Chunk returns the result as an audio chunk ready for a sink.
func (r *AudioResult) Chunk() audioio.AudioChunk {
	channels := r.Format.Channels
	if channels <= 0 {
		channels = 1
	}
	return audioio.AudioChunk{
		Samples:    audioio.BytesToSamples(r.Audio),
		SampleRate: r.Format.SampleRate,
		Channels:   channels,
	}
}

// AudioFormat describes PCM output.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
	BitDepth   int
}

// Encoding names an output format.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm_16000" // 16kHz mono PCM16
	EncodingPCM22 Encoding = "pcm_22050" // 22.05kHz mono PCM16
	EncodingPCM24 Encoding = "pcm_24000" // 24kHz mono PCM16, OpenAI "pcm"
)

// SampleRateFromEncoding extracts the sample rate from an encoding.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM22:
		return 22050
	default:
		return 24000
	}
}

// pcmDuration computes the play time of n bytes of mono PCM16.
func pcmDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n/2) * time.Second / time.Duration(sampleRate)
}
