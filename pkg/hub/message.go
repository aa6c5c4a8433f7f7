// Package hub fans status events out to websocket subscribers.
//
// One goroutine (Run) owns the client set. Connections register through
// channels and each client has its own buffered queue; a client that
// cannot keep up is dropped rather than slowing the others.
package hub

import "time"

// Message is one queued text frame of encoded JSON.
type Message struct {
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Data: data}
}

// EventType names a status event.
type EventType string

const (
	EventStreamOpened EventType = "stream_opened"
	EventPeople       EventType = "people"
	EventStreamClosed EventType = "stream_closed"
	EventCommand      EventType = "command"
	EventCameraConfig EventType = "camera_config"
)

// Event is the JSON payload pushed to status subscribers.
type Event struct {
	Type    EventType `json:"type"`
	Stream  string    `json:"stream,omitempty"`
	People  int       `json:"people"`
	FPS     float64   `json:"fps,omitempty"`
	Command string    `json:"command,omitempty"`
	Outcome string    `json:"outcome,omitempty"`
	Error   string    `json:"error,omitempty"`
	Camera  any       `json:"camera,omitempty"`
	Time    time.Time `json:"time"`
}
