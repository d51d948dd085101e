// Package liveness decides whether a musician still counts as active.
//
// A musician is alive while the absolute distance between its last
// announcement and the current time stays within Window. There is no
// departure message; silence is the only signal that a musician left.
//
// The check is a pure function so the window can be exercised without a
// tracker, a clock, or a socket:
//
//	if liveness.IsAlive(lastSeen, time.Now()) {
//		// keep it
//	}
package liveness
