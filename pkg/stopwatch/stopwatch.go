// Package stopwatch provides a small monotonic stopwatch used by the
// application driver to compute per-tick timesteps.
package stopwatch

import "time"

// Stopwatch measures elapsed time against the monotonic clock.
type Stopwatch struct {
	start time.Time
}

// New returns a running stopwatch started at the current time.
func New() *Stopwatch {
	return &Stopwatch{start: time.Now()}
}

// Elapsed returns the time since start (or the last Restart) in seconds.
func (s *Stopwatch) Elapsed() float64 {
	return time.Since(s.start).Seconds()
}

// ElapsedDuration returns the time since start as a time.Duration.
func (s *Stopwatch) ElapsedDuration() time.Duration {
	return time.Since(s.start)
}

// Restart resets the stopwatch to the current time.
func (s *Stopwatch) Restart() {
	s.start = time.Now()
}
