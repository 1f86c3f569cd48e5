package freelist

import (
	"math"
	"sync/atomic"

	"github.com/pavanmanishd/slotpool/hal"
)

// MaxTagged is the largest capacity a Tagged stack can address.
const MaxTagged = math.MaxInt32

// Tagged is a Treiber stack whose head word carries a 32-bit generation in
// its upper half.
type Tagged struct {
	word    hal.Word64
	links   Links
	hook    Hook
	retries atomic.Uint64
}

// NewTagged returns a Tagged stack whose top is head. It must be called
// before the stack is shared.
func NewTagged(word hal.Word64, links Links, head uint32, hook Hook) *Tagged {
	word.Store(pack64(head, 0))
	return &Tagged{word: word, links: links, hook: hook}
}

func pack64(i, gen uint32) uint64 { return uint64(gen)<<32 | uint64(i) }

func unpack64(v uint64) (i, gen uint32) { return uint32(v), uint32(v >> 32) }

// Pop implements Stack.
func (s *Tagged) Pop() (uint32, bool) {
	for {
		old := s.word.Load()
		top, gen := unpack64(old)
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
		if s.word.CompareAndSwap(old, pack64(next, gen+1)) {
			return top, true
		}
		s.retries.Add(1)
	}
}

// Push implements Stack.
func (s *Tagged) Push(i uint32) {
	for {
		old := s.word.Load()
		top, gen := unpack64(old)
		s.links.SetNext(i, top)
		if s.hook != nil {
			s.hook(PointPush)
		}
		if s.word.CompareAndSwap(old, pack64(i, gen+1)) {
			return
		}
		s.retries.Add(1)
	}
}

// Head implements Stack.
func (s *Tagged) Head() uint32 {
	top, _ := unpack64(s.word.Load())
	return top
}

// Generation returns the current generation of the head.
func (s *Tagged) Generation() uint32 {
	_, gen := unpack64(s.word.Load())
	return gen
}

// Retries implements Stack.
func (s *Tagged) Retries() uint64 { return s.retries.Load() }

// Kind implements Stack.
func (s *Tagged) Kind() Kind { return KindTagged }
