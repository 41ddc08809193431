package audioio

import (
	"context"
	"time"
)

// AudioChunk is a block of interleaved PCM16 samples.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Duration is the playing time of the chunk.
func (c *AudioChunk) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// Peak is the largest absolute sample value.
func (c *AudioChunk) Peak() int {
	return Peak(c.Samples)
}

// Source is the robot's microphone.
//
// Start opens the device and Stop releases it; the hotword listener and the
// utterance capture each hold it only while they run, so a Source is
// started and stopped many times. Close is final.
type Source interface {
	Start(ctx context.Context) error
	Stop() error

	// Read blocks for the next chunk. It returns io.EOF once the source is
	// stopped, or the error that ended capture.
	Read(ctx context.Context) (AudioChunk, error)

	// Stream delivers the same chunks as Read and is closed on Stop.
	Stream() <-chan AudioChunk

	Config() Config
	Name() string
	Close() error
}

// Sink is the robot's speaker. It stays started for the whole process.
type Sink interface {
	Start(ctx context.Context) error
	Stop() error

	// Write queues a chunk for playback and may block while the device
	// buffer is full.
	Write(ctx context.Context, chunk AudioChunk) error

	// Flush returns once everything written has been heard.
	Flush(ctx context.Context) error

	// Clear drops queued audio, cutting the current clip short.
	Clear() error

	Config() Config
	Name() string
	Close() error
}

// SourceStats counts capture activity.
type SourceStats struct {
	Backend     string `json:"backend"`
	Running     bool   `json:"running"`
	ChunksRead  int64  `json:"chunks_read"`
	SamplesRead int64  `json:"samples_read"`
	Overruns    int64  `json:"overruns"` // chunks dropped because nobody was reading
}

// SinkStats counts playback activity.
type SinkStats struct {
	Backend        string `json:"backend"`
	Running        bool   `json:"running"`
	ChunksWritten  int64  `json:"chunks_written"`
	SamplesWritten int64  `json:"samples_written"`
}

// SourceWithStats is a Source that reports SourceStats.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}

// SinkWithStats is a Sink that reports SinkStats.
type SinkWithStats interface {
	Sink
	Stats() SinkStats
}
