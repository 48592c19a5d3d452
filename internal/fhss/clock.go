package fhss

import "time"

// Clock abstracts the monotonic microsecond-resolution timer the timing
// oracle and supervisor measure against, kept explicit and testable rather
// than reading a hardware timer directly.
type Clock interface {
	// NowMicro returns a monotonically increasing microsecond timestamp.
	// Only differences between two calls are meaningful.
	NowMicro() int64
}

// systemClock implements Clock against the real wall clock.
type systemClock struct{ start time.Time }

// NewSystemClock returns a Clock backed by time.Since, anchored at creation
// time so early microsecond values stay small.
func NewSystemClock() Clock {
	return &systemClock{start: time.Now()}
}

func (c *systemClock) NowMicro() int64 {
	return time.Since(c.start).Microseconds()
}
