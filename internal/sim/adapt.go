package sim

// Slotted is a handle that knows its slot index.
type Slotted interface {
	Slot() int
}

// Allocator is a pool handing out handles of type H.
type Allocator[H Slotted] interface {
	Alloc() (H, error)
	Free(h H)
	Available() int
}

type adapter[H Slotted] struct {
	a    Allocator[H]
	live map[int]H
}

// Adapt turns a handle-based pool into a Target. Alloc errors are reported
// as a failed step.
func Adapt[H Slotted](a Allocator[H]) Target {
	return &adapter[H]{a: a, live: map[int]H{}}
}

func (d *adapter[H]) Alloc() (int, bool) {
	h, err := d.a.Alloc()
	if err != nil {
		return -1, false
	}
	d.live[h.Slot()] = h
	return h.Slot(), true
}

func (d *adapter[H]) Free(slot int) {
	h := d.live[slot]
	delete(d.live, slot)
	d.a.Free(h)
}

func (d *adapter[H]) Available() int { return d.a.Available() }
