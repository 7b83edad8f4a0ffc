package sim

import "fmt"

// Tick units. One tick is one simulated second.
const (
	Second int64 = 1
	Minute       = 60 * Second
	Hour         = 60 * Minute
)

// ValidSpeeds is the set of accepted speed multipliers.
var ValidSpeeds = map[int]bool{1: true, 2: true, 4: true, 8: true}

// IsValidSpeed returns true if speed is an accepted multiplier.
func IsValidSpeed(speed int) bool {
	return ValidSpeeds[speed]
}

// Clock tracks simulated time.
//
// Now counts every tick handed to the engine, including ticks spent paused.
// Elapsed counts only active (running) time; release times, due times and
// the session countdown are all measured on Elapsed. Station deadlines are
// kept as remaining durations on the active clock, so a resume shifts them
// by exactly PausedTotal accumulated during the pause.
type Clock struct {
	Now         int64 `json:"now"`
	Elapsed     int64 `json:"elapsed"`
	PausedTotal int64 `json:"pausedTotal"`
	Speed       int   `json:"speed"`
}

// Scale converts a tick request into simulated ticks using the speed multiplier.
func (c *Clock) Scale(dt int64) int64 {
	return dt * int64(c.Speed)
}

func (c *Clock) advanceActive(delta int64) {
	c.Now += delta
	c.Elapsed += delta
}

func (c *Clock) advancePaused(delta int64) {
	c.Now += delta
	c.PausedTotal += delta
}

func (c Clock) String() string {
	return fmt.Sprintf("Clock: (Now: %d, Elapsed: %d, Paused: %d, Speed: %dx)", c.Now, c.Elapsed, c.PausedTotal, c.Speed)
}

// MinutesToTicks converts authored minutes into ticks, rounding to the nearest second.
func MinutesToTicks(m float64) int64 {
	return int64(m*float64(Minute) + 0.5)
}
