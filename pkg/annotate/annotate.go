// Package annotate draws person detections and a running count onto frames.
package annotate

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-peoplecam/pkg/detection"
)

// Overlay geometry.
const (
	BoxThickness = 4
	LabelHeight  = 30
	LabelInsetX  = 20

	// labelMinY keeps labels drawn above a box clear of the frame's top edge.
	labelMinY = 15
)

var (
	labelTextColor = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	countColor     = color.RGBA{R: 255, G: 255, B: 0, A: 0} // Yellow
	countOrigin    = image.Pt(10, 30)
)

// Config holds annotator configuration
type Config struct {
	Target        detection.Class // Only this class is drawn and counted
	MinConfidence float32         // Detections must score strictly above this
}

// DefaultConfig draws people above 30% confidence
func DefaultConfig() Config {
	return Config{
		Target:        detection.Person,
		MinConfidence: 0.3,
	}
}

// Annotator draws overlays in place. It keeps no per-frame state and
// can be shared between pipelines.
type Annotator struct {
	config Config
}

// New creates an Annotator
func New(cfg Config) *Annotator {
	return &Annotator{config: cfg}
}

// Keep returns the detections that will be drawn
func (a *Annotator) Keep(dets []detection.Detection) []detection.Detection {
	var kept []detection.Detection
	for _, d := range dets {
		if d.Class != a.config.Target || d.Confidence <= a.config.MinConfidence {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}

// Annotate draws every kept detection and the count onto frame and
// returns the count.
func (a *Annotator) Annotate(frame *gocv.Mat, dets []detection.Detection) int {
	kept := a.Keep(dets)
	for _, d := range kept {
		DrawDetection(frame, d)
	}
	DrawCount(frame, len(kept))
	return len(kept)
}

// DrawDetection draws one box with its label, unfiltered.
func DrawDetection(frame *gocv.Mat, d detection.Detection) {
	c := d.Class.Color()
	gocv.Rectangle(frame, d.Box, c, BoxThickness)

	place := PlaceLabel(d.Box)
	gocv.Rectangle(frame, place.Background, c, -1)
	gocv.PutText(frame, d.Label(), place.Origin, gocv.FontHersheyDuplex, 0.6, labelTextColor, 1)
}

// DrawCount writes CountText(n) in the top-left corner.
func DrawCount(frame *gocv.Mat, n int) {
	gocv.PutText(frame, CountText(n), countOrigin, gocv.FontHersheySimplex, 1, countColor, 2)
}

// CountText is the top-left overlay text
func CountText(n int) string {
	return fmt.Sprintf("People Detected: %d", n)
}

// LabelPlacement is where a box label goes
type LabelPlacement struct {
	Background image.Rectangle // Filled label area
	Origin     image.Point     // Text baseline origin
	Above      bool            // Whether the label sits above the box
}

// PlaceLabel positions the label above box, or just inside its top
// edge when there is no room between the box and the top of the frame.
func PlaceLabel(box image.Rectangle) LabelPlacement {
	x1, y1, x2 := box.Min.X, box.Min.Y, box.Max.X

	if y1-labelMinY > labelMinY {
		return LabelPlacement{
			Background: image.Rect(x1-1, y1-LabelHeight, x2+1, y1),
			Origin:     image.Pt(x1+LabelInsetX, y1-labelMinY+5),
			Above:      true,
		}
	}

	return LabelPlacement{
		Background: image.Rect(x1-1, y1, x2+1, y1+LabelHeight),
		Origin:     image.Pt(x1+LabelInsetX, y1+labelMinY+5),
		Above:      false,
	}
}
