// Package detection provides object detection using a MobileNet-SSD model
package detection

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Sentinel errors for detector failures.
var (
	// ErrModelNotFound is returned when a model file does not exist.
	ErrModelNotFound = errors.New("detection: model file not found")

	// ErrModelLoad is returned when OpenCV cannot build a network from the files.
	ErrModelLoad = errors.New("detection: failed to load model")

	// ErrEmptyFrame is returned when Detect is handed an empty frame.
	ErrEmptyFrame = errors.New("detection: empty frame")

	// ErrInference is returned when the forward pass produces no usable output.
	ErrInference = errors.New("detection: inference failed")

	// ErrClosed is returned when Detect is called after Close.
	ErrClosed = errors.New("detection: detector closed")
)

// Detection is one object found in a frame.
type Detection struct {
	Class      Class
	Confidence float32         // 0-1
	Box        image.Rectangle // Pixel coordinates (x1,y1)-(x2,y2)
}

// Label returns the overlay text, e.g. "PERSON [95.00%]".
func (d Detection) Label() string {
	return fmt.Sprintf("%s [%.2f%%]", d.Class, d.Confidence*100)
}

// Detector is the interface for detection backends
type Detector interface {
	// Detect finds objects in a BGR frame
	Detect(frame gocv.Mat) ([]Detection, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration
type Config struct {
	Prototxt         string  // Caffe network description
	Weights          string  // Caffe weights
	ConfidenceThresh float32 // Rows must score strictly above this
	InputWidth       int     // Model input width
	InputHeight      int     // Model input height
	Scale            float64 // Pixel scale factor applied before mean subtraction
	Mean             float64 // Per-channel mean
}

// DefaultConfig returns production defaults for MobileNet-SSD
func DefaultConfig() Config {
	return Config{
		Prototxt:         "./MobileNetSSD/MobileNetSSD.prototxt",
		Weights:          "./MobileNetSSD/MobileNetSSD.caffemodel",
		ConfidenceThresh: 0.3,
		InputWidth:       300,
		InputHeight:      300,
		Scale:            0.007843,
		Mean:             127.5,
	}
}
