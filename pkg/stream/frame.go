package stream

// Multipart framing shared by every MJPEG client.
const (
	Boundary    = "frame"
	ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

	partHeader  = "--" + Boundary + "\r\nContent-Type: image/jpeg\r\n\r\n"
	partTrailer = "\r\n"
)

// EncodedFrame is one compressed frame ready for transport.
type EncodedFrame struct {
	chunk  []byte
	people int
}

func newEncodedFrame(jpeg []byte, people int) EncodedFrame {
	chunk := make([]byte, 0, len(partHeader)+len(jpeg)+len(partTrailer))
	chunk = append(chunk, partHeader...)
	chunk = append(chunk, jpeg...)
	chunk = append(chunk, partTrailer...)
	return EncodedFrame{chunk: chunk, people: people}
}

// Bytes returns the full multipart part: boundary, header, JPEG, delimiter.
// The slice must not be modified.
func (f EncodedFrame) Bytes() []byte {
	return f.chunk
}

// Payload returns the bare JPEG.
func (f EncodedFrame) Payload() []byte {
	if len(f.chunk) == 0 {
		return nil
	}
	return f.chunk[len(partHeader) : len(f.chunk)-len(partTrailer)]
}

// People is the person count drawn on the frame.
func (f EncodedFrame) People() int {
	return f.people
}
