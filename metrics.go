package slotpool

// Utilization returns the ratio of owned slots to capacity (0.0 to 1.0).
// Returns 0.0 for an uninitialized pool.
func (p *Pool[T]) Utilization() float64 {
	capacity := p.Capacity()
	if capacity == 0 {
		return 0
	}
	return float64(p.InUse()) / float64(capacity)
}

// Metrics returns a snapshot of pool statistics. Counters are read one at a
// time while other contexts keep running, so the snapshot is advisory.
func (p *Pool[T]) Metrics() PoolMetrics {
	m := PoolMetrics{
		Capacity:    p.Capacity(),
		Available:   p.Available(),
		InUse:       p.InUse(),
		Allocs:      p.allocs.Load(),
		Frees:       p.frees.Load(),
		OutOfMemory: p.ooms.Load(),
		SlotSize:    p.SlotSize(),
		Strategy:    p.strategy,
		OffHeap:     p.cfg.OffHeap,
		Utilization: p.Utilization(),
	}
	if p.stack != nil {
		m.Retries = p.stack.Retries()
	}
	return m
}

// PoolMetrics contains statistical information about a pool.
type PoolMetrics struct {
	Capacity    int      // Number of slots
	Available   int      // Free slots
	InUse       int      // Live handles
	Allocs      uint64   // Successful allocations
	Frees       uint64   // Frees
	OutOfMemory uint64   // Allocations that found the pool empty
	Retries     uint64   // CAS attempts lost to a concurrent push or pop
	SlotSize    int      // Bytes per slot, bookkeeping included
	Strategy    Strategy // Free-list protection in use
	OffHeap     bool     // Slots live in an anonymous mapping
	Utilization float64  // Ratio of InUse to Capacity (0.0-1.0)
}
