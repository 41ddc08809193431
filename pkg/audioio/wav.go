package audioio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotWAV is returned when data is not a PCM16 RIFF/WAVE stream.
var ErrNotWAV = errors.New("audioio: not a 16-bit PCM wav file")

// EncodeWAV wraps a chunk in a 44-byte RIFF/WAVE header.
func EncodeWAV(chunk AudioChunk) []byte {
	var buf bytes.Buffer
	WriteWAV(&buf, chunk)
	return buf.Bytes()
}

// WriteWAV writes chunk as a 16-bit PCM wav stream.
func WriteWAV(w io.Writer, chunk AudioChunk) error {
	channels := chunk.Channels
	if channels <= 0 {
		channels = 1
	}
	rate := chunk.SampleRate
	if rate <= 0 {
		rate = 16000
	}

	dataSize := uint32(len(chunk.Samples) * 2)
	header := struct {
		RIFF          [4]byte
		FileSize      uint32
		WAVE          [4]byte
		Fmt           [4]byte
		FmtSize       uint32
		AudioFormat   uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Data          [4]byte
		DataSize      uint32
	}{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		FileSize:      36 + dataSize,
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		Channels:      uint16(channels),
		SampleRate:    uint32(rate),
		ByteRate:      uint32(rate * channels * 2),
		BlockAlign:    uint16(channels * 2),
		BitsPerSample: 16,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      dataSize,
	}

	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("audioio: write wav header: %w", err)
	}
	if _, err := w.Write(SamplesToBytes(chunk.Samples)); err != nil {
		return fmt.Errorf("audioio: write wav data: %w", err)
	}
	return nil
}

// ReadWAV parses a PCM16 wav stream. Unknown chunks (LIST, fact) are skipped.
func ReadWAV(r io.Reader) (AudioChunk, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return AudioChunk{}, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return AudioChunk{}, ErrNotWAV
	}

	var (
		chunk   AudioChunk
		haveFmt bool
	)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return AudioChunk{}, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil || size < 16 {
				return AudioChunk{}, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			bits := binary.LittleEndian.Uint16(body[14:16])
			// 0xFFFE is WAVE_FORMAT_EXTENSIBLE, which ffmpeg and sox emit for plain PCM too.
			if (format != 1 && format != 0xFFFE) || bits != 16 {
				return AudioChunk{}, fmt.Errorf("%w: format %d, %d bits", ErrNotWAV, format, bits)
			}
			chunk.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			chunk.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			haveFmt = true

		case "data":
			if !haveFmt {
				return AudioChunk{}, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			data, err := io.ReadAll(io.LimitReader(r, int64(size)))
			if err != nil {
				return AudioChunk{}, fmt.Errorf("audioio: read wav data: %w", err)
			}
			chunk.Samples = BytesToSamples(data)
			return chunk, nil

		default:
			skip := int64(size) + int64(size&1)
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return AudioChunk{}, fmt.Errorf("%w: truncated %q chunk", ErrNotWAV, id)
			}
		}
	}
}

// LoadWAV reads a wav file from disk.
func LoadWAV(path string) (AudioChunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return AudioChunk{}, err
	}
	defer f.Close()
	return ReadWAV(f)
}
