package shared

import "time"

// Clock supplies the current time to domain logic that depends on "now"
// (days overdue, dunning levels). Pure functions never read the system clock
// directly; callers inject a Clock so computations stay testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns the current system time
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns the same instant. Intended for tests and for
// batch runs that must evaluate a whole portfolio against one reference time.
type FixedClock struct {
	Instant time.Time
}

// Now returns the fixed instant
func (c FixedClock) Now() time.Time {
	return c.Instant
}
