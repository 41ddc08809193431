// Package usb captures photos from a V4L2 camera through OpenCV.
package usb

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-tonypi/pkg/camera"
)

// Camera opens the device for each photo and releases it afterwards, so the
// camera is never held between tool calls.
type Camera struct {
	settings *camera.Manager
	logger   *slog.Logger

	mu sync.Mutex // one capture at a time
}

// New creates a camera reading its settings from m.
func New(m *camera.Manager, logger *slog.Logger) *Camera {
	if logger == nil {
		logger = slog.Default()
	}
	return &Camera{
		settings: m,
		logger:   logger.With("component", "camera.usb"),
	}
}

// Capture opens the device, discards the warmup frames and returns the
// next frame as JPEG.
func (c *Camera) Capture(ctx context.Context) (camera.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := c.settings.GetConfig()
	start := time.Now()

	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return camera.Frame{}, fmt.Errorf("%w %d: %v", camera.ErrOpen, cfg.Device, err)
	}
	defer vc.Close()

	if !vc.IsOpened() {
		return camera.Frame{}, fmt.Errorf("%w %d", camera.ErrOpen, cfg.Device)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))

	img := gocv.NewMat()
	defer img.Close()

	for i := 0; i <= cfg.Warmup; i++ {
		if err := ctx.Err(); err != nil {
			return camera.Frame{}, err
		}
		if ok := vc.Read(&img); !ok {
			return camera.Frame{}, fmt.Errorf("%w: read failed after %d frames", camera.ErrNoFrame, i)
		}
	}
	if img.Empty() {
		return camera.Frame{}, camera.ErrNoFrame
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{int(gocv.IMWriteJpegQuality), cfg.Quality})
	if err != nil {
		return camera.Frame{}, fmt.Errorf("camera: encode: %w", err)
	}
	defer buf.Close()

	frame := camera.Frame{
		JPEG:   append([]byte(nil), buf.GetBytes()...),
		Width:  img.Cols(),
		Height: img.Rows(),
		Taken:  time.Now(),
	}
	c.logger.Debug("photo taken",
		"device", cfg.Device,
		"size", fmt.Sprintf("%dx%d", frame.Width, frame.Height),
		"bytes", len(frame.JPEG),
		"elapsed", time.Since(start),
	)
	return frame, nil
}

var _ camera.Capturer = (*Camera)(nil)
