// Package camera describes the robot's USB camera: its runtime settings,
// the frames it produces, and the Capturer interface the vision tools use.
// The OpenCV implementation lives in camera/usb.
package camera

// Config holds camera settings. They can be changed at runtime through
// Manager; the next capture picks them up.
type Config struct {
	// Device is the V4L2 index (/dev/videoN).
	Device int `json:"device"`

	Width   int `json:"width"`
	Height  int `json:"height"`
	Quality int `json:"quality"` // JPEG quality 1-100

	// Warmup is the number of frames discarded after opening, so auto
	// exposure can settle before the photo is taken.
	Warmup int `json:"warmup"`
}

// Limits of the supported USB cameras.
const (
	MaxWidth  = 1920
	MaxHeight = 1080
	MaxWarmup = 60
)

// DefaultConfig returns 640x480, which the vision model handles quickly.
func DefaultConfig() Config {
	return Config{
		Device:  0,
		Width:   640,
		Height:  480,
		Quality: 85,
		Warmup:  5,
	}
}

// Validate returns a list of problems, or nil if the config is usable.
func (c *Config) Validate() []string {
	var errs []string
	if c.Device < 0 {
		errs = append(errs, "device must not be negative")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errs = append(errs, "width must be between 160 and 1920")
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errs = append(errs, "height must be between 120 and 1080")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, "quality must be between 1 and 100")
	}
	if c.Warmup < 0 || c.Warmup > MaxWarmup {
		errs = append(errs, "warmup must be between 0 and 60")
	}
	return errs
}
