package domain

import "time"

// Ticks is the wire-protocol position unit: 100 nanoseconds.
// All positions and durations exchanged with the server are ticks;
// all player-internal state is seconds.
type Ticks int64

// TicksPerSecond is the number of 100ns ticks in one second.
const TicksPerSecond = 10_000_000

// SecondsToTicks converts a position in seconds to wire ticks
func SecondsToTicks(seconds float64) Ticks {
	return Ticks(seconds * TicksPerSecond)
}

// Seconds converts wire ticks to a position in seconds
func (t Ticks) Seconds() float64 {
	return float64(t) / TicksPerSecond
}

// Duration converts wire ticks to a time.Duration
func (t Ticks) Duration() time.Duration {
	return time.Duration(t) * 100 * time.Nanosecond
}

// DurationToTicks converts a time.Duration to wire ticks
func DurationToTicks(d time.Duration) Ticks {
	return Ticks(d / (100 * time.Nanosecond))
}
