package utils

import "time"

// Timer measures per-call latency. [NewTimer] starts measuring immediately;
// [Timer.Stop] captures the elapsed wall-clock time and returns it. The
// captured value stays available through [Timer.GetDuration] until the next
// Stop.
type Timer struct {
	startTime time.Time
	duration  time.Duration
}

// NewTimer returns a Timer already measuring from now.
func NewTimer() *Timer {
	return &Timer{startTime: time.Now()}
}

// Start begins a fresh measurement from now, discarding any prior start
// instant. The previously captured duration is left untouched until Stop.
func (t *Timer) Start() {
	t.startTime = time.Now()
}

// Stop captures and returns the time elapsed since construction or the last
// [Timer.Start], whichever is more recent.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.startTime)
	return t.duration
}

// GetDuration returns the last captured duration, or zero if Stop has not
// been called.
func (t *Timer) GetDuration() time.Duration {
	return t.duration
}
