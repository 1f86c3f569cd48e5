package slotpool

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"unsafe"

	"github.com/pavanmanishd/slotpool/hal"
	"github.com/pavanmanishd/slotpool/internal/freelist"
)

const (
	stateNew uint32 = iota
	stateInitializing
	stateReady
)

// Pool is a fixed-capacity pool of slots holding one T each.
//
// The zero value is an uninitialized pool; declare it as a package-level
// variable and call Init once at startup, before any interrupt handler or
// goroutine can reach it. Alloc and Free are then safe from any context,
// never block and never allocate.
type Pool[T any] struct {
	state    atomic.Uint32
	stack    freelist.Stack
	slots    slots[T]
	cfg      Config
	strategy Strategy
	log      *slog.Logger
	reset    func(*T)

	live   atomic.Int64
	allocs atomic.Uint64
	frees  atomic.Uint64
	ooms   atomic.Uint64
}

// New returns an initialized pool.
func New[T any](cfg Config, opts ...Option) (*Pool[T], error) {
	p := &Pool[T]{}
	if err := p.Init(cfg, opts...); err != nil {
		return nil, err
	}
	return p, nil
}

// Init builds the storage and links every slot into the free list. It must
// complete before the first Alloc. A config error is returned and leaves the
// pool uninitialized; calling Init on a pool that is initialized, or being
// initialized, panics with ErrAlreadyInitialized.
func (p *Pool[T]) Init(cfg Config, opts ...Option) error {
	if !p.state.CompareAndSwap(stateNew, stateInitializing) {
		fatal(p.log, ErrAlreadyInitialized, "init called twice",
			"capacity", cfg.Capacity)
	}
	if err := p.init(cfg, opts); err != nil {
		p.state.Store(stateNew)
		return err
	}
	p.state.Store(stateReady)
	return nil
}

func (p *Pool[T]) init(cfg Config, opts []Option) error {
	o := options{caps: hal.Host(), log: discard}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = discard
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	var reset func(*T)
	if o.reset != nil {
		fn, ok := o.reset.(func(*T))
		if !ok {
			var zero T
			return fmt.Errorf("%w: reset function %T does not take *%T", ErrInvalidConfig, o.reset, zero)
		}
		reset = fn
	}
	strategy, err := selectStrategy(cfg, o.caps)
	if err != nil {
		return err
	}
	s, err := newSlots[T](cfg.Capacity, cfg.OffHeap)
	if err != nil {
		return err
	}

	head := s.link()
	switch strategy {
	case StrategyTagged:
		p.stack = freelist.NewTagged(o.caps.Wide(), s, head, o.hook)
	case StrategyPacked:
		p.stack = freelist.NewPacked(o.caps.Narrow(), s, head, o.hook)
	case StrategyMasked:
		p.stack = freelist.NewMasked(o.caps.Mask, s, head, o.hook)
	}

	p.slots = s
	p.cfg = cfg
	p.strategy = strategy
	p.log = o.log
	p.reset = reset

	p.log.Info("pool initialized",
		"capacity", cfg.Capacity,
		"strategy", strategy.String(),
		"capabilities", o.caps.String(),
		"slot_size", p.SlotSize(),
		"off_heap", cfg.OffHeap,
		"debug", cfg.Debug,
	)
	return nil
}

// Initialized reports whether Init has completed.
func (p *Pool[T]) Initialized() bool {
	return p.state.Load() == stateReady
}

func (p *Pool[T]) mustBeReady(op string) {
	if p.state.Load() != stateReady {
		fatal(p.log, ErrNotInitialized, op+" before Init")
	}
}

// Alloc takes a free slot. It returns ErrOutOfMemory when none is left.
// The payload is uninitialized: it holds whatever the previous owner left
// unless a reset function clears it on free.
func (p *Pool[T]) Alloc() (Handle[T], error) {
	p.mustBeReady("alloc")

	i, ok := p.stack.Pop()
	if !ok {
		p.ooms.Add(1)
		return Handle[T]{}, ErrOutOfMemory
	}
	if p.cfg.Debug {
		if h := p.stack.Head(); h != freelist.Nil && int(h) >= len(p.slots) {
			fatal(p.log, ErrCorrupted, "free list head out of range",
				"head", h, "capacity", len(p.slots))
		}
	}

	lease := p.slots[i].lease.Add(1)
	if lease&1 == 0 {
		fatal(p.log, ErrCorrupted, "popped slot was already owned",
			"slot", i, "lease", lease)
	}
	p.live.Add(1)
	p.allocs.Add(1)
	return Handle[T]{pool: p, idx: i, lease: lease}, nil
}

// MustAlloc is like Alloc but panics when the pool is exhausted. Use it only
// where running out of slots is a bug.
func (p *Pool[T]) MustAlloc() Handle[T] {
	h, err := p.Alloc()
	if err != nil {
		panic(err)
	}
	return h
}

// Free returns the slot owned by h to the pool. h and every copy of it are
// dead afterwards; freeing or dereferencing one of them panics.
func (p *Pool[T]) Free(h Handle[T]) {
	p.mustBeReady("free")
	if h.pool != p {
		fatal(p.log, ErrInvalidHandle, "handle does not belong to this pool",
			"slot", h.idx)
	}

	s := &p.slots[h.idx]
	if !s.lease.CompareAndSwap(h.lease, h.lease+1) {
		fatal(p.log, ErrDoubleFree, "slot is not owned by this handle",
			"slot", h.idx, "lease", h.lease, "current", s.lease.Load())
	}
	// The slot is claimed: no other copy of h can reach it. It goes back on
	// the list even if reset panics.
	defer func() {
		p.stack.Push(h.idx)
		p.live.Add(-1)
		p.frees.Add(1)
	}()
	if p.reset != nil {
		p.reset(&s.val)
	}
	if p.cfg.Debug {
		var zero T
		s.val = zero
	}
}

// Capacity returns the number of slots.
func (p *Pool[T]) Capacity() int {
	return len(p.slots)
}

// Available returns the number of free slots. Other contexts may change it
// at any moment; it is advisory only.
func (p *Pool[T]) Available() int {
	if !p.Initialized() {
		return 0
	}
	// A slot pushed by Free can be popped again before Free drops the live
	// count, so the difference may briefly go negative.
	return max(len(p.slots)-int(p.live.Load()), 0)
}

// InUse returns the number of live handles. It is advisory only.
func (p *Pool[T]) InUse() int {
	return int(p.live.Load())
}

// Strategy returns the strategy chosen at Init.
func (p *Pool[T]) Strategy() Strategy {
	return p.strategy
}

// SlotSize returns the bytes occupied by one slot, bookkeeping included.
func (p *Pool[T]) SlotSize() int {
	var s slot[T]
	return int(unsafe.Sizeof(s))
}
