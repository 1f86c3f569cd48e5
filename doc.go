// Package slotpool implements a fixed-capacity, lock-free pool of
// fixed-size slots that is safe to use from interrupt handlers.
//
// # Overview
//
// A pool owns N slots of one element type, created once at startup. Free
// slots form a stack threaded through the slots themselves; Alloc pops it
// and Free pushes onto it. Neither operation blocks, sleeps or allocates,
// so both can run in any context, including a handler that preempted
// another Alloc or Free on the same pool. This makes the pool suitable for:
//
//   - Buffers shared between thread mode and interrupt handlers
//   - Message queues on targets without a general-purpose heap
//   - Hot paths that must never trigger the garbage collector
//
// # Basic Usage
//
//	var frames slotpool.Pool[Frame] // process-wide, initialized once
//
//	func main() {
//		if err := frames.Init(slotpool.Config{Capacity: 16}); err != nil {
//			log.Fatal(err)
//		}
//
//		h, err := frames.Alloc()
//		if errors.Is(err, slotpool.ErrOutOfMemory) {
//			// drop, retry later or back off: the caller decides
//		}
//		defer h.Free()
//
//		h.Ptr().Seq = 1
//	}
//
// With scopes a slot to a function call:
//
//	err := frames.With(func(f *Frame) error {
//		f.Seq = 2
//		return send(f)
//	})
//
// # Strategies
//
// A preempted pop can observe the same head before and after an interrupt
// that changed the list underneath it (the ABA problem). The pool protects
// the head with one of three strategies, chosen from the primitives the
// target exposes (see package hal):
//
//   - tagged: a 64-bit CAS over the head index and a 32-bit generation
//   - packed: a 32-bit CAS over a 16-bit index and a 16-bit generation
//   - masked: the push or pop body runs with interrupts masked
//
// All strategies give the same results for the same interleaving.
//
// # Ownership
//
// A Handle owns one slot until it is freed. Freeing it twice, or reading
// through a handle after its slot was freed, panics: the free list cannot
// be trusted after either mistake. Running out of slots is not a mistake;
// Alloc returns ErrOutOfMemory.
//
// # Important Notes
//
//   - Capacity never changes; there is no growth path
//   - Payloads are not zeroed on Alloc; write before reading
//   - Available and Metrics are racy snapshots, not synchronization
//   - Audit is for quiescent pools, typically in tests
package slotpool
