// Package hal defines the atomic primitives a slot pool consumes from its
// target. The pool never implements these itself: a target supplies
// whichever subset it has and the pool picks a free-list strategy to match.
//
// Three capabilities are recognized:
//
//   - Word64: a compare-and-swap over 64 bits. On a 32-bit core this is the
//     double-width CAS used to swap a (slot, generation) pair in one step.
//   - Word32: a single machine-word compare-and-swap.
//   - InterruptMask: a disable/restore pair usable as a critical section on
//     cores that have no usable CAS at all.
//
// Host returns software implementations suitable for tests and tooling on
// ordinary operating systems.
package hal

import "strings"

// Word64 is a 64-bit word supporting atomic load, store and compare-and-swap.
type Word64 interface {
	Load() uint64
	Store(v uint64)
	CompareAndSwap(old, new uint64) bool
}

// Word32 is a 32-bit word supporting atomic load, store and compare-and-swap.
type Word32 interface {
	Load() uint32
	Store(v uint32)
	CompareAndSwap(old, new uint32) bool
}

// MaskState is the interrupt state saved by Disable.
type MaskState uint32

// Unmasked is the state of a core that was taking interrupts when Disable
// was called.
const Unmasked MaskState = 0

// InterruptMask masks interrupts for the duration of a critical section.
// Restore must be called with the state returned by the matching Disable;
// nested pairs restore the outer state exactly.
type InterruptMask interface {
	Disable() MaskState
	Restore(s MaskState)
}

// Capabilities describes the primitives a target exposes. A nil field means
// the primitive is not available.
type Capabilities struct {
	// Wide creates the word used for the tagged (reference, generation) head.
	Wide func() Word64
	// Narrow creates a single-word head that packs a short generation next
	// to the slot index.
	Narrow func() Word32
	// Mask serializes push and pop when no CAS is available.
	Mask InterruptMask
}

// String lists the available primitives, e.g. "cas64+cas32+mask".
func (c Capabilities) String() string {
	var parts []string
	if c.Wide != nil {
		parts = append(parts, "cas64")
	}
	if c.Narrow != nil {
		parts = append(parts, "cas32")
	}
	if c.Mask != nil {
		parts = append(parts, "mask")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// Without returns a copy of c with the named primitives removed. Names are
// the ones produced by String. It is used to emulate smaller targets.
func (c Capabilities) Without(names ...string) Capabilities {
	for _, n := range names {
		switch n {
		case "cas64":
			c.Wide = nil
		case "cas32":
			c.Narrow = nil
		case "mask":
			c.Mask = nil
		}
	}
	return c
}
