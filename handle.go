package slotpool

// Handle is exclusive ownership of one allocated slot. It is a small value
// and creating one never allocates.
//
// Ownership ends with exactly one Free, made either through the handle or
// through Pool.Free. Passing the handle on transfers ownership; the
// previous holder must not use its copy afterwards. Freeing twice or
// touching the payload after Free, through any copy, panics.
//
// The zero Handle owns nothing.
type Handle[T any] struct {
	pool  *Pool[T]
	idx   uint32
	lease uint32
}

func (h Handle[T]) slot() *slot[T] {
	if h.pool == nil {
		fatal(nil, ErrInvalidHandle, "zero handle")
	}
	s := &h.pool.slots[h.idx]
	if s.lease.Load() != h.lease {
		fatal(h.pool.log, ErrUseAfterFree, "handle no longer owns its slot",
			"slot", h.idx, "lease", h.lease)
	}
	return s
}

// Ptr returns a pointer to the payload. The pointer is valid until the
// handle is freed and must not be kept beyond that.
func (h Handle[T]) Ptr() *T {
	return &h.slot().val
}

// Load returns a copy of the payload.
func (h Handle[T]) Load() T {
	return h.slot().val
}

// Store overwrites the payload.
func (h Handle[T]) Store(v T) {
	h.slot().val = v
}

// Init stores v and returns the handle, for one-line allocation:
//
//	h := pool.MustAlloc().Init(Frame{Seq: 1})
func (h Handle[T]) Init(v T) Handle[T] {
	h.Store(v)
	return h
}

// Slot returns the index of the owned slot, or -1 for the zero handle.
func (h Handle[T]) Slot() int {
	if h.pool == nil {
		return -1
	}
	return int(h.idx)
}

// Valid reports whether h still owns its slot.
func (h Handle[T]) Valid() bool {
	return h.pool != nil && h.pool.slots[h.idx].lease.Load() == h.lease
}

// Free returns the slot to its pool. It is safe to defer.
func (h Handle[T]) Free() {
	if h.pool == nil {
		fatal(nil, ErrInvalidHandle, "free of zero handle")
	}
	h.pool.Free(h)
}
