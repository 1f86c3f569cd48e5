// Package freelist implements the lock-free stack of free slot indices that
// backs a slot pool, in one variant per atomic primitive.
//
// Every variant follows the same contract: Pop removes and returns the top
// index or reports an empty stack, Push makes an index the new top, and the
// head is changed only through the variant's primitive. Next-references are
// stored in the slots themselves and reached through Links.
//
// A preempted pop can observe head A with next B, lose the processor to an
// interrupt that pops A, pops B and pushes A back, and then resume. A CAS on
// the index alone would succeed and install B, which is no longer free. The
// CAS variants bump a generation on every successful push and pop so the
// stale CAS fails; the masked variant makes the read-modify-write
// indivisible instead.
package freelist

import "fmt"

// Nil is the end-of-list sentinel.
const Nil uint32 = ^uint32(0)

// Kind identifies a stack variant.
type Kind uint8

const (
	// KindTagged packs a 32-bit index and a 32-bit generation in a Word64.
	KindTagged Kind = iota + 1
	// KindPacked packs a 16-bit index and a 16-bit generation in a Word32.
	KindPacked
	// KindMasked runs push and pop inside an interrupt-masked section.
	KindMasked
)

func (k Kind) String() string {
	switch k {
	case KindTagged:
		return "tagged"
	case KindPacked:
		return "packed"
	case KindMasked:
		return "masked"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Point names a preemption window inside push or pop.
type Point uint8

const (
	// PointPop is the window between reading the head and swapping it.
	PointPop Point = iota + 1
	// PointPush is the window between linking the slot and swapping the head.
	PointPush
)

func (p Point) String() string {
	switch p {
	case PointPop:
		return "pop"
	case PointPush:
		return "push"
	default:
		return fmt.Sprintf("Point(%d)", uint8(p))
	}
}

// Hook is called at every preemption window. It lets a test or simulator
// run interrupt handlers exactly where real hardware could take them.
type Hook func(Point)

// Links gives access to the next-reference stored in a free slot.
type Links interface {
	Next(i uint32) uint32
	SetNext(i, next uint32)
}

// Stack is a free list of slot indices.
type Stack interface {
	// Pop removes the top index. ok is false when the stack was observed
	// empty.
	Pop() (i uint32, ok bool)
	// Push makes i the top of the stack. i must not be on the stack.
	Push(i uint32)
	// Head returns the current top index or Nil. It is a racy snapshot.
	Head() uint32
	// Retries is the number of CAS attempts that lost a race.
	Retries() uint64
	Kind() Kind
}
