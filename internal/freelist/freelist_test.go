package freelist

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/pavanmanishd/slotpool/hal"
)

// links is a Links over a plain slice, linked 0 -> 1 -> ... -> n-1.
type links []atomic.Uint32

func newLinks(n int) links {
	l := make(links, n)
	for i := range l {
		next := uint32(i + 1)
		if i == n-1 {
			next = Nil
		}
		l[i].Store(next)
	}
	return l
}

func (l links) Next(i uint32) uint32   { return l[i].Load() }
func (l links) SetNext(i, next uint32) { l[i].Store(next) }

// chain walks the stack from its head. It fails the test on a cycle.
func chain(t *testing.T, s Stack, l links) []uint32 {
	t.Helper()
	var out []uint32
	seen := map[uint32]bool{}
	for i := s.Head(); i != Nil; i = l.Next(i) {
		require.False(t, seen[i], "cycle at slot %d", i)
		seen[i] = true
		out = append(out, i)
	}
	return out
}

type factory func(l Links, hook Hook) Stack

func factories() map[string]factory {
	return map[string]factory{
		"tagged": func(l Links, hook Hook) Stack { return NewTagged(hal.NewWord64(), l, 0, hook) },
		"packed": func(l Links, hook Hook) Stack { return NewPacked(hal.NewWord32(), l, 0, hook) },
		"masked": func(l Links, hook Hook) Stack { return NewMasked(&hal.SpinMask{}, l, 0, hook) },
	}
}

func TestStackLIFO(t *testing.T) {
	for name, mk := range factories() {
		t.Run(name, func(t *testing.T) {
			l := newLinks(4)
			s := mk(l, nil)

			for want := uint32(0); want < 4; want++ {
				got, ok := s.Pop()
				require.True(t, ok)
				assert.Equal(t, want, got)
			}
			_, ok := s.Pop()
			assert.False(t, ok)
			assert.Equal(t, Nil, s.Head())

			s.Push(1)
			s.Push(3)
			assert.Equal(t, []uint32{3, 1}, chain(t, s, l))

			got, ok := s.Pop()
			require.True(t, ok)
			assert.Equal(t, uint32(3), got)
		})
	}
}

// naive is the textbook Treiber stack with an index-only CAS. It exists to
// show that the preemption scenario below really corrupts an unprotected
// list.
type naive struct {
	head  atomic.Uint32
	links Links
	hook  Hook
}

func (s *naive) Pop() (uint32, bool) {
	for {
		top := s.head.Load()
		if top == Nil {
			return Nil, false
		}
		next := s.links.Next(top)
		if s.hook != nil {
			s.hook(PointPop)
		}
		if s.head.CompareAndSwap(top, next) {
			return top, true
		}
	}
}

func (s *naive) Push(i uint32) {
	for {
		top := s.head.Load()
		s.links.SetNext(i, top)
		if s.head.CompareAndSwap(top, i) {
			return
		}
	}
}

func (s *naive) Head() uint32    { return s.head.Load() }
func (s *naive) Retries() uint64 { return 0 }
func (s *naive) Kind() Kind      { return 0 }

// abaScenario pops once with an interrupt in the pop window that pops two
// slots and pushes the first one back. It returns the slot won by the
// preempted pop and the slots still held by the handler.
func abaScenario(t *testing.T, s Stack, arm func(Hook)) (uint32, []uint32) {
	t.Helper()
	var held []uint32
	fired := false
	arm(func(p Point) {
		if fired || p != PointPop {
			return
		}
		fired = true
		a, ok := s.Pop()
		require.True(t, ok)
		b, ok := s.Pop()
		require.True(t, ok)
		s.Push(a)
		held = append(held, b)
	})
	got, ok := s.Pop()
	require.True(t, ok)
	require.True(t, fired)
	return got, held
}

func TestNaiveStackIsCorruptedByABA(t *testing.T) {
	l := newLinks(4)
	s := &naive{links: l}
	s.head.Store(0)

	got, held := abaScenario(t, s, func(h Hook) { s.hook = h })

	// The handler holds slot 1, yet the resumed pop installed it as head.
	assert.Equal(t, uint32(0), got)
	assert.Equal(t, []uint32{1}, held)
	assert.Equal(t, uint32(1), s.Head())
}

func TestStackSurvivesABA(t *testing.T) {
	for name, mk := range factories() {
		t.Run(name, func(t *testing.T) {
			l := newLinks(4)
			var hook Hook
			s := mk(l, func(p Point) {
				if hook != nil {
					hook(p)
				}
			})

			got, held := abaScenario(t, s, func(h Hook) { hook = h })
			hook = nil

			assert.Equal(t, []uint32{1}, held)
			assert.Equal(t, uint32(0), got)
			assert.Equal(t, []uint32{2, 3}, chain(t, s, l))
			if name != "masked" {
				assert.Positive(t, s.Retries())
			}
		})
	}
}

func TestPopSeesPushFromEmptyWindow(t *testing.T) {
	for name, mk := range factories() {
		t.Run(name, func(t *testing.T) {
			l := newLinks(1)
			var hook Hook
			s := mk(l, func(p Point) {
				if hook != nil {
					hook(p)
				}
			})
			first, ok := s.Pop()
			require.True(t, ok)

			// The interrupt frees the only slot while the pop sits in its
			// window with an empty head; the pop must not report empty.
			hook = func(p Point) {
				hook = nil
				s.Push(first)
			}
			got, ok := s.Pop()
			require.True(t, ok)
			assert.Equal(t, first, got)
		})
	}
}

func TestPackedSentinelRoundTrip(t *testing.T) {
	i, gen := unpack32(pack32(Nil, 9))
	assert.Equal(t, Nil, i)
	assert.Equal(t, uint16(9), gen)

	i, gen = unpack32(pack32(MaxPacked-1, 0xFFFF))
	assert.Equal(t, uint32(MaxPacked-1), i)
	assert.Equal(t, uint16(0xFFFF), gen)
}

func TestTaggedGenerationAdvances(t *testing.T) {
	l := newLinks(2)
	s := NewTagged(hal.NewWord64(), l, 0, nil)
	assert.Equal(t, uint32(0), s.Generation())

	i, ok := s.Pop()
	require.True(t, ok)
	s.Push(i)
	assert.Equal(t, uint32(2), s.Generation())
}

func TestStackConcurrent(t *testing.T) {
	const (
		n       = 64
		workers = 8
		rounds  = 2000
	)
	for name, mk := range factories() {
		t.Run(name, func(t *testing.T) {
			l := newLinks(n)
			s := mk(l, nil)
			owners := make([]atomic.Int32, n)

			var g errgroup.Group
			for w := 1; w <= workers; w++ {
				g.Go(func() error {
					for r := 0; r < rounds; r++ {
						i, ok := s.Pop()
						if !ok {
							continue
						}
						if !owners[i].CompareAndSwap(0, int32(w)) {
							t.Errorf("slot %d handed out twice", i)
						}
						owners[i].Store(0)
						s.Push(i)
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())
			assert.Len(t, chain(t, s, l), n)
		})
	}
}
