package stream

import (
	"time"

	"github.com/benbjohnson/clock"
)

// fpsMeter measures frames per second over roughly one-second windows.
type fpsMeter struct {
	clock  clock.Clock
	start  time.Time
	frames int
	fps    float64
}

func newFPSMeter(c clock.Clock) *fpsMeter {
	return &fpsMeter{clock: c, start: c.Now()}
}

// Tick records a frame and returns the latest rate.
func (m *fpsMeter) Tick() float64 {
	m.frames++
	elapsed := m.clock.Since(m.start)
	if elapsed >= time.Second {
		m.fps = float64(m.frames) / elapsed.Seconds()
		m.frames = 0
		m.start = m.clock.Now()
	}
	return m.fps
}
