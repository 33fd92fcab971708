package core

import "time"

type Clock struct {
	start   time.Time
	elapsed time.Duration
}

func NewClock() *Clock {
	return &Clock{}
}

// Updates the provided clock. Should be called just before checking elapsed time.
// Has no effect on non-started clocks.
func (c *Clock) Update() {
	if !c.start.IsZero() {
		c.elapsed = time.Since(c.start)
	}
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.start = time.Now()
	c.elapsed = 0
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.start = time.Time{}
}

func (c *Clock) Elapsed() time.Duration {
	return c.elapsed
}

// ElapsedMS is the elapsed time in milliseconds, the unit metrics are kept in.
func (c *Clock) ElapsedMS() float64 {
	return float64(c.elapsed) / float64(time.Millisecond)
}
