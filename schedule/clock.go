package schedule

import "time"

// Clock abstracts time.Now so "today", range windows and the undo window
// are deterministic under test.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current local time.
func (RealClock) Now() time.Time {
	return time.Now()
}
