package game

// Chances is a bounded lives counter in [0, Max].
type Chances struct {
	Max     int
	Current int
}

// NewChances returns a tracker at current, clamped to [0, max].
func NewChances(max, current int) *Chances {
	if max < 0 {
		max = 0
	}
	c := &Chances{Max: max, Current: current}
	c.clamp()
	return c
}

func (c *Chances) clamp() {
	if c.Current < 0 {
		c.Current = 0
	}
	if c.Current > c.Max {
		c.Current = c.Max
	}
}

// Decrement removes one chance, stopping at zero. It reports whether the
// tracker is now exhausted.
func (c *Chances) Decrement() bool {
	c.Current--
	c.clamp()
	return c.Current == 0
}

// Increment restores one chance, stopping at Max.
func (c *Chances) Increment() {
	c.Current++
	c.clamp()
}

// Exhausted reports whether no chances remain.
func (c *Chances) Exhausted() bool {
	return c.Current <= 0
}

// ChanceSlot is one icon position in the chances indicator.
type ChanceSlot struct {
	Active bool `json:"active"`
}

// Slots returns Max slots; the first Current are active, the rest lost.
func (c *Chances) Slots() []ChanceSlot {
	out := make([]ChanceSlot, c.Max)
	for i := range out {
		out[i].Active = i < c.Current
	}
	return out
}
