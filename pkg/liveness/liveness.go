package liveness

import "time"

// Window is how long a musician stays active after its last announcement.
// The boundary is inclusive: exactly Window old is still alive.
const Window = 5 * time.Second

// Policy reports whether an entry last seen at lastSeen is alive at now.
type Policy func(lastSeen, now time.Time) bool

// Within returns a Policy that keeps entries whose lastSeen lies within
// window of now in either direction. A lastSeen in the future (clock skew)
// is alive as long as it is no further ahead than window.
func Within(window time.Duration) Policy {
	return func(lastSeen, now time.Time) bool {
		d := now.Sub(lastSeen)
		return d <= window && d >= -window
	}
}

var alive = Within(Window)

// IsAlive applies the fixed Window.
func IsAlive(lastSeen, now time.Time) bool {
	return alive(lastSeen, now)
}
