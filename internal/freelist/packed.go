package freelist

import (
	"sync/atomic"

	"github.com/pavanmanishd/slotpool/hal"
)

// MaxPacked is the largest capacity a Packed stack can address; index
// 0xFFFF is the sentinel.
const MaxPacked = 0xFFFF

const nil16 = 0xFFFF

// Packed is a Treiber stack for targets with only a single-word CAS. The
// low half of the word is the index and the high half a 16-bit generation.
// The generation wraps after 65536 head changes, far more than can happen
// inside one preemption window on a single core.
type Packed struct {
	word    hal.Word32
	links   Links
	hook    Hook
	retries atomic.Uint64
}

// NewPacked returns a Packed stack whose top is head. head must be Nil or
// below MaxPacked.
func NewPacked(word hal.Word32, links Links, head uint32, hook Hook) *Packed {
	word.Store(pack32(head, 0))
	return &Packed{word: word, links: links, hook: hook}
}

func pack32(i uint32, gen uint16) uint32 {
	if i == Nil {
		i = nil16
	}
	return uint32(gen)<<16 | i&0xFFFF
}

func unpack32(v uint32) (uint32, uint16) {
	i := v & 0xFFFF
	if i == nil16 {
		i = Nil
	}
	return i, uint16(v >> 16)
}

// Pop implements Stack.
func (s *Packed) Pop() (uint32, bool) {
	for {
		old := s.word.Load()
		top, gen := unpack32(old)
		if top == Nil {
			if s.hook != nil {
				s.hook(PointPop)
				if s.word.Load() != old {
					s.retries.Add(1)
					continue
				}
			}
			return Nil, false
		}
		next := s.links.Next(top)
		if s.hook != nil {
			s.hook(PointPop)
		}
		if s.word.CompareAndSwap(old, pack32(next, gen+1)) {
			return top, true
		}
		s.retries.Add(1)
	}
}

// Push implements Stack.
func (s *Packed) Push(i uint32) {
	for {
		old := s.word.Load()
		top, gen := unpack32(old)
		s.links.SetNext(i, top)
		if s.hook != nil {
			s.hook(PointPush)
		}
		if s.word.CompareAndSwap(old, pack32(i, gen+1)) {
			return
		}
		s.retries.Add(1)
	}
}

// Head implements Stack.
func (s *Packed) Head() uint32 {
	top, _ := unpack32(s.word.Load())
	return top
}

// Retries implements Stack.
func (s *Packed) Retries() uint64 { return s.retries.Load() }

// Kind implements Stack.
func (s *Packed) Kind() Kind { return KindPacked }
