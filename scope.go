package slotpool

// With allocates a slot, passes its payload to fn and frees the slot when fn
// returns, panics or fails. The payload pointer must not outlive fn.
// It returns ErrOutOfMemory without calling fn when the pool is exhausted,
// otherwise the error from fn.
func (p *Pool[T]) With(fn func(v *T) error) error {
	h, err := p.Alloc()
	if err != nil {
		return err
	}
	defer h.Free()
	return fn(h.Ptr())
}

// Get allocates a slot, stores v in it and returns the handle.
func Get[T any](p *Pool[T], v T) (Handle[T], error) {
	h, err := p.Alloc()
	if err != nil {
		return Handle[T]{}, err
	}
	h.Store(v)
	return h, nil
}

// Take copies the payload out of h, frees h and returns the copy.
func Take[T any](h Handle[T]) T {
	v := h.Load()
	h.Free()
	return v
}
