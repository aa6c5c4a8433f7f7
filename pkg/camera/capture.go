package camera

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrOpen is returned when a capture device cannot be acquired.
var ErrOpen = errors.New("camera: could not open video device")

// Source yields successive frames from a capture device.
type Source interface {
	// Read fills frame with the next image. It reports false when no
	// frame could be read; the source should then be closed.
	Read(frame *gocv.Mat) bool

	// Close releases the device.
	Close() error
}

// Opener acquires a fresh capture handle. Each stream calls it once.
type Opener func() (Source, error)

// VideoCapture is a Source backed by an OpenCV capture device.
type VideoCapture struct {
	vc *gocv.VideoCapture
}

// Open acquires the device described by cfg.
func Open(cfg Config) (*VideoCapture, error) {
	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrOpen, cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w %s", ErrOpen, cfg.Device)
	}

	if cfg.Width > 0 && cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))
	}

	return &VideoCapture{vc: vc}, nil
}

// Read grabs the next frame. An empty frame counts as a failed read.
func (c *VideoCapture) Read(frame *gocv.Mat) bool {
	if ok := c.vc.Read(frame); !ok {
		return false
	}
	return !frame.Empty()
}

// Close releases the device.
func (c *VideoCapture) Close() error {
	return c.vc.Close()
}
