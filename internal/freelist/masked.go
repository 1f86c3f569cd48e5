package freelist

import (
	"sync/atomic"

	"github.com/pavanmanishd/slotpool/hal"
)

// Masked serializes push and pop with an interrupt mask. The masked section
// is a fixed handful of loads and stores. It never retries.
type Masked struct {
	mask  hal.InterruptMask
	head  atomic.Uint32
	links Links
	hook  Hook
}

// NewMasked returns a Masked stack whose top is head.
func NewMasked(mask hal.InterruptMask, links Links, head uint32, hook Hook) *Masked {
	s := &Masked{mask: mask, links: links, hook: hook}
	s.head.Store(head)
	return s
}

// Pop implements Stack. The hook runs at the last instruction boundary
// before interrupts are masked, the only point where a handler can still
// get in ahead of this pop.
func (s *Masked) Pop() (uint32, bool) {
	if s.hook != nil {
		s.hook(PointPop)
	}
	st := s.mask.Disable()
	top := s.head.Load()
	if top == Nil {
		s.mask.Restore(st)
		return Nil, false
	}
	s.head.Store(s.links.Next(top))
	s.mask.Restore(st)
	return top, true
}

// Push implements Stack.
func (s *Masked) Push(i uint32) {
	if s.hook != nil {
		s.hook(PointPush)
	}
	st := s.mask.Disable()
	s.links.SetNext(i, s.head.Load())
	s.head.Store(i)
	s.mask.Restore(st)
}

// Head implements Stack.
func (s *Masked) Head() uint32 { return s.head.Load() }

// Retries implements Stack.
func (s *Masked) Retries() uint64 { return 0 }

// Kind implements Stack.
func (s *Masked) Kind() Kind { return KindMasked }
