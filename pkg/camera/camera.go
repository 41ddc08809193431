package camera

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"time"
)

var (
	// ErrOpen is returned when the device cannot be opened.
	ErrOpen = errors.New("camera: cannot open device")

	// ErrNoFrame is returned when the device produced no usable frame.
	ErrNoFrame = errors.New("camera: no frame")
)

// Frame is one JPEG-encoded photo.
type Frame struct {
	JPEG   []byte
	Width  int
	Height int
	Taken  time.Time
}

// Capturer takes a single photo. Implementations open and release the
// device around each call.
type Capturer interface {
	Capture(ctx context.Context) (Frame, error)
}

// Mock is a Capturer for tests. By default it returns a small gray JPEG.
type Mock struct {
	CaptureFunc func(ctx context.Context) (Frame, error)

	mu    sync.Mutex
	calls int
}

// Capture calls CaptureFunc.
func (m *Mock) Capture(ctx context.Context) (Frame, error) {
	m.mu.Lock()
	m.calls++
	fn := m.CaptureFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return GrayFrame(32, 24)
}

// Calls returns the number of captures.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// GrayFrame encodes a uniform gray image.
func GrayFrame(w, h int) (Frame, error) {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = color.Gray{Y: 128}.Y
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return Frame{}, err
	}
	return Frame{JPEG: buf.Bytes(), Width: w, Height: h, Taken: time.Now()}, nil
}

var _ Capturer = (*Mock)(nil)
