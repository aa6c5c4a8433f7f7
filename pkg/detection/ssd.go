package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-peoplecam/internal/log"
)

// ssdRowSize is the width of one SSD output row:
// [image_id, class_index, confidence, x1, y1, x2, y2]
const ssdRowSize = 7

// SSDDetector runs a Caffe MobileNet-SSD through OpenCV's DNN module.
// A single network is shared by every stream, so inference is serialized.
type SSDDetector struct {
	net       gocv.Net
	config    Config
	inputSize image.Point
	logger    *zap.Logger

	mu     sync.Mutex // Protects net
	closed bool
}

// NewSSD loads the model files and prepares the network
func NewSSD(cfg Config) (*SSDDetector, error) {
	for _, path := range []string{cfg.Prototxt, cfg.Weights} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
	}

	net := gocv.ReadNetFromCaffe(cfg.Prototxt, cfg.Weights)
	if net.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrModelLoad, cfg.Weights)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &SSDDetector{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
		logger:    log.Named("detection"),
	}, nil
}

// Detect runs one forward pass over frame
func (d *SSDDetector) Detect(frame gocv.Mat) ([]Detection, error) {
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}

	blob := gocv.BlobFromImage(frame, d.config.Scale, d.inputSize,
		gocv.NewScalar(d.config.Mean, d.config.Mean, d.config.Mean, 0), false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	output := d.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return nil, ErrInference
	}

	// Output shape: [1, 1, N, 7]
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	dets := decodeSSD(data, frame.Cols(), frame.Rows(), d.config.ConfidenceThresh)
	if len(dets) > 0 {
		d.logger.Debug("objects detected", zap.Int("count", len(dets)))
	}
	return dets, nil
}

// decodeSSD turns raw SSD rows into detections scaled to a width x height frame.
func decodeSSD(data []float32, width, height int, thresh float32) []Detection {
	var dets []Detection

	w := float32(width)
	h := float32(height)

	for i := 0; i+ssdRowSize <= len(data); i += ssdRowSize {
		row := data[i : i+ssdRowSize]

		confidence := row[2]
		if confidence <= thresh {
			continue
		}

		class, ok := ClassFromIndex(int(row[1]))
		if !ok {
			continue
		}

		dets = append(dets, Detection{
			Class:      class,
			Confidence: confidence,
			Box: image.Rectangle{
				Min: image.Pt(int(row[3]*w), int(row[4]*h)),
				Max: image.Pt(int(row[5]*w), int(row[6]*h)),
			},
		})
	}

	return dets
}

// Close releases the network
func (d *SSDDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.net.Close()
}
