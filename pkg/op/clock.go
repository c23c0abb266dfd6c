package op

import "time"

// Clock is the injected time capability (spec.md §9: "never read wall
// time directly"). Tests substitute a fixed clock to make token
// lifetimes deterministic.
type Clock interface {
	UtcNow() time.Time
}

// SystemClock is the default Clock, backed by time.Now().
type SystemClock struct{}

// UtcNow returns the current UTC time.
func (SystemClock) UtcNow() time.Time { return time.Now().UTC() }
