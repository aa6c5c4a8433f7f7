// Package encode compresses frames for transport.
package encode

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

var (
	// ErrEmptyFrame is returned when asked to encode an empty frame.
	ErrEmptyFrame = errors.New("encode: empty frame")

	// ErrEncode is returned when the codec rejects the frame.
	ErrEncode = errors.New("encode: compression failed")
)

// Encoder turns a frame into a transport-ready buffer.
type Encoder interface {
	Encode(frame gocv.Mat) ([]byte, error)
}

// JPEG encodes frames with OpenCV's JPEG codec.
// Quality 0 keeps the codec default.
type JPEG struct {
	Quality int
}

// Encode returns an owned copy of the compressed frame. On failure no
// bytes are returned.
func (j JPEG) Encode(frame gocv.Mat) ([]byte, error) {
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}

	var (
		buf *gocv.NativeByteBuffer
		err error
	)
	if j.Quality > 0 {
		buf, err = gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{gocv.IMWriteJpegQuality, j.Quality})
	} else {
		buf, err = gocv.IMEncode(gocv.JPEGFileExt, frame)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	defer buf.Close()

	data := buf.GetBytes()
	if len(data) == 0 {
		return nil, ErrEncode
	}
	return data, nil
}
