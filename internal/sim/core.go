// Package sim emulates a single core with nested interrupt levels so that
// pool operations can be preempted at chosen points on an ordinary host.
//
// Everything in this package runs on one goroutine. An interrupt is a plain
// function call made from inside the preempted code, which is exactly how a
// nested handler appears to the code it interrupts.
package sim

import "github.com/pavanmanishd/slotpool/hal"

const masked hal.MaskState = 1

// Core is an emulated processor core. Its zero value is ready to use with
// interrupts enabled.
type Core struct {
	masked   bool
	pending  []func()
	depth    int
	maxDepth int
	taken    int
}

var _ hal.InterruptMask = (*Core)(nil)

// Disable masks interrupts and returns the previous state.
func (c *Core) Disable() hal.MaskState {
	if c.masked {
		return masked
	}
	c.masked = true
	return hal.Unmasked
}

// Restore restores the state saved by Disable. Unmasking takes every
// interrupt that became pending while masked, in the order raised.
func (c *Core) Restore(s hal.MaskState) {
	if s != hal.Unmasked {
		return
	}
	c.masked = false
	for len(c.pending) > 0 && !c.masked {
		h := c.pending[0]
		c.pending = c.pending[1:]
		c.enter(h)
	}
}

// Raise requests an interrupt. The handler runs immediately, one level
// deeper, unless interrupts are masked, in which case it runs on unmask.
func (c *Core) Raise(h func()) {
	if c.masked {
		c.pending = append(c.pending, h)
		return
	}
	c.enter(h)
}

func (c *Core) enter(h func()) {
	c.depth++
	c.taken++
	if c.depth > c.maxDepth {
		c.maxDepth = c.depth
	}
	defer func() { c.depth-- }()
	h()
}

// Masked reports whether interrupts are currently masked.
func (c *Core) Masked() bool { return c.masked }

// Depth is the current interrupt nesting level; 0 is thread mode.
func (c *Core) Depth() int { return c.depth }

// MaxDepth is the deepest nesting level reached so far.
func (c *Core) MaxDepth() int { return c.maxDepth }

// Taken is the number of handlers run so far.
func (c *Core) Taken() int { return c.taken }

// Pending is the number of interrupts waiting for unmask.
func (c *Core) Pending() int { return len(c.pending) }
