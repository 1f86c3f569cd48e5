package slotpool

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/pavanmanishd/slotpool/internal/freelist"
)

// Report is the result of an Audit.
type Report struct {
	Capacity int
	// Free is the number of slots reachable from the head.
	Free int
	// Owned is the number of slots whose lease marks them allocated.
	Owned int
	// Live is the live-handle counter.
	Live int
	Head int // -1 when the list is empty
}

// Audit walks the whole free list and checks that every slot is either
// reachable from the head or owned, never both and never neither; that the
// list is acyclic and ends in the sentinel; and that the live-handle
// counter agrees.
//
// Audit reads without synchronizing with Alloc and Free. Call it only while
// no other context is using the pool.
func (p *Pool[T]) Audit() (Report, error) {
	p.mustBeReady("audit")

	r := Report{Capacity: len(p.slots), Live: int(p.live.Load()), Head: -1}
	visited := roaring.New()

	head := p.stack.Head()
	if head != freelist.Nil {
		r.Head = int(head)
	}
	for i := head; i != freelist.Nil; i = p.slots[i].next.Load() {
		if int(i) >= len(p.slots) {
			return r, p.corrupted(r, fmt.Errorf("link to slot %d out of range", i))
		}
		if !visited.CheckedAdd(i) {
			return r, p.corrupted(r, fmt.Errorf("cycle through slot %d", i))
		}
		if p.slots[i].lease.Load()&1 == 1 {
			return r, p.corrupted(r, fmt.Errorf("slot %d is on the free list and owned", i))
		}
	}
	r.Free = int(visited.GetCardinality())

	for i := range p.slots {
		owned := p.slots[i].lease.Load()&1 == 1
		if owned {
			r.Owned++
			continue
		}
		if !visited.Contains(uint32(i)) {
			return r, p.corrupted(r, fmt.Errorf("slot %d is neither free nor owned", i))
		}
	}

	if r.Free+r.Owned != r.Capacity {
		return r, p.corrupted(r, fmt.Errorf("%d free + %d owned != capacity %d", r.Free, r.Owned, r.Capacity))
	}
	if r.Owned != r.Live {
		return r, p.corrupted(r, fmt.Errorf("%d owned slots but %d live handles", r.Owned, r.Live))
	}
	return r, nil
}

func (p *Pool[T]) corrupted(r Report, cause error) error {
	p.log.Warn("audit failed",
		"error", cause,
		"capacity", r.Capacity,
		"head", r.Head,
		"live", r.Live,
	)
	return fmt.Errorf("%w: %w", ErrCorrupted, cause)
}
