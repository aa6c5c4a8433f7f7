// Package stream turns a capture device into a lazy sequence of annotated,
// JPEG-encoded multipart chunks.
//
// A Pipeline serves exactly one consumer. It opens its device on the first
// call to Next, produces one frame per call, and closes for good on the
// first failure or on Close. A new consumer needs a new Pipeline.
package stream

import (
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-peoplecam/internal/log"
	"github.com/teslashibe/go-peoplecam/pkg/annotate"
	"github.com/teslashibe/go-peoplecam/pkg/camera"
	"github.com/teslashibe/go-peoplecam/pkg/detection"
	"github.com/teslashibe/go-peoplecam/pkg/encode"
)

// ErrRead is the terminal error when the device stops delivering frames.
var ErrRead = errors.New("stream: could not read frame from camera")

// State is the pipeline lifecycle state.
type State int

const (
	Opening State = iota
	Streaming
	Closed
)

func (s State) String() string {
	switch s {
	case Opening:
		return "opening"
	case Streaming:
		return "streaming"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// FrameStats describes one produced frame.
type FrameStats struct {
	Stream string
	Frame  uint64
	People int
	FPS    float64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver registers a callback run after every produced frame.
// It runs on the consumer's goroutine and must not block.
func WithObserver(fn func(FrameStats)) Option {
	return func(p *Pipeline) { p.observer = fn }
}

// WithClock sets the clock used for FPS measurement.
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// Pipeline drives capture → detect → annotate → encode for one consumer.
// Next and Close may be called from different goroutines.
type Pipeline struct {
	id        string
	open      camera.Opener
	detector  detection.Detector
	annotator *annotate.Annotator
	encoder   encode.Encoder
	observer  func(FrameStats)
	clock     clock.Clock
	logger    *zap.Logger

	mu     sync.Mutex
	state  State
	src    camera.Source
	err    error
	frames uint64
	fps    *fpsMeter
}

// New creates a pipeline in the Opening state. No device is touched until
// the first call to Next.
func New(open camera.Opener, det detection.Detector, ann *annotate.Annotator, enc encode.Encoder, opts ...Option) *Pipeline {
	p := &Pipeline{
		id:        uuid.NewString(),
		open:      open,
		detector:  det,
		annotator: ann,
		encoder:   enc,
		clock:     clock.New(),
		state:     Opening,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.Named("stream")
	}
	p.logger = p.logger.With(zap.String("stream", p.id))
	p.fps = newFPSMeter(p.clock)
	return p
}

// ID identifies the pipeline in logs and events.
func (p *Pipeline) ID() string {
	return p.id
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Err returns why the pipeline closed, or nil if it is still running or
// was closed by its consumer.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Next produces the next frame. It returns false once the pipeline is
// closed; after that it never returns a frame again.
func (p *Pipeline) Next() (EncodedFrame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case Closed:
		return EncodedFrame{}, false
	case Opening:
		src, err := p.open()
		if err != nil {
			p.fail(fmt.Errorf("open: %w", err))
			return EncodedFrame{}, false
		}
		p.src = src
		p.state = Streaming
		p.logger.Info("stream opened")
	}

	out, err := p.step()
	if err != nil {
		p.fail(err)
		return EncodedFrame{}, false
	}
	return out, true
}

// step runs one iteration on a frame owned by this call.
func (p *Pipeline) step() (EncodedFrame, error) {
	frame := gocv.NewMat()
	defer frame.Close()

	if ok := p.src.Read(&frame); !ok {
		return EncodedFrame{}, ErrRead
	}

	dets, err := p.detector.Detect(frame)
	if err != nil {
		return EncodedFrame{}, fmt.Errorf("detect: %w", err)
	}

	people := p.annotator.Annotate(&frame, dets)

	jpeg, err := p.encoder.Encode(frame)
	if err != nil {
		return EncodedFrame{}, fmt.Errorf("encode: %w", err)
	}

	p.frames++
	if p.observer != nil {
		p.observer(FrameStats{
			Stream: p.id,
			Frame:  p.frames,
			People: people,
			FPS:    p.fps.Tick(),
		})
	}

	return newEncodedFrame(jpeg, people), nil
}

// fail records the terminal error and releases the device. Caller holds mu.
func (p *Pipeline) fail(err error) {
	p.err = err
	p.logger.Warn("stream ended", zap.Error(err), zap.Uint64("frames", p.frames))
	p.release()
}

// release moves to Closed and closes the device once. Caller holds mu.
func (p *Pipeline) release() error {
	if p.state == Closed {
		return nil
	}
	p.state = Closed

	if p.src == nil {
		return nil
	}
	err := p.src.Close()
	p.src = nil
	if err != nil {
		p.logger.Warn("camera close failed", zap.Error(err))
	}
	return err
}

// Close stops the pipeline and releases the device. It is safe to call
// more than once and before the first Next.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	wasOpen := p.state != Closed
	err := p.release()
	if wasOpen {
		p.logger.Info("stream closed", zap.Uint64("frames", p.frames))
	}
	return err
}
