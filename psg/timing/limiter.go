// Package timing provides advisory frame pacing for hosts. The core
// never paces itself; hosts wrap their consumption loop in a Limiter
// fed by the sync layer's FPS target.
package timing

import "time"

// Limiter paces a host loop to a frame rate.
type Limiter interface {
	// WaitForNextFrame blocks until it's time for the next frame.
	// Returns immediately if timing is behind schedule.
	WaitForNextFrame()

	// Reset resets the timing state, useful after pauses.
	Reset()
}

// NewNoOpLimiter returns a limiter that doesn't limit (for headless or
// fast-forward mode).
func NewNoOpLimiter() Limiter {
	return &noOpLimiter{}
}

type noOpLimiter struct{}

func (n *noOpLimiter) WaitForNextFrame() {}
func (n *noOpLimiter) Reset()            {}

// FrameDuration returns the target duration of a single frame at the
// given rate.
func FrameDuration(fps float64) time.Duration {
	return time.Duration(float64(time.Second) / fps)
}
