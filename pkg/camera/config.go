// Package camera provides capture devices for the streaming pipeline and
// runtime-configurable capture settings.
package camera

import "fmt"

// Config holds capture configuration.
// Changes apply to streams opened afterwards; open streams keep their device.
type Config struct {
	// Device is a numeric index ("0") or a path/URL OpenCV understands.
	Device string `json:"device"`

	// Requested frame size. 0 keeps the device default.
	Width  int `json:"width"`
	Height int `json:"height"`

	// FPS requested from the device. 0 keeps the device default.
	FPS int `json:"fps"`
}

// Capture limits accepted by Validate.
const (
	MaxWidth  = 3840
	MaxHeight = 2160
	MaxFPS    = 120
)

// DefaultConfig opens the first camera at its native settings.
func DefaultConfig() Config {
	return Config{
		Device: "0",
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device == "" {
		errors = append(errors, "device is required")
	}
	if c.Width != 0 && (c.Width < 160 || c.Width > MaxWidth) {
		errors = append(errors, fmt.Sprintf("width must be 0 (native) or between 160 and %d", MaxWidth))
	}
	if c.Height != 0 && (c.Height < 120 || c.Height > MaxHeight) {
		errors = append(errors, fmt.Sprintf("height must be 0 (native) or between 120 and %d", MaxHeight))
	}
	if (c.Width == 0) != (c.Height == 0) {
		errors = append(errors, "width and height must be set together")
	}
	if c.FPS < 0 || c.FPS > MaxFPS {
		errors = append(errors, fmt.Sprintf("fps must be between 0 and %d", MaxFPS))
	}

	return errors
}
