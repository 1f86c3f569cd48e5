package hal

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Host returns the primitives available to a program running under an
// ordinary operating system: sync/atomic words and a spinning mask.
func Host() Capabilities {
	return Capabilities{
		Wide:   NewWord64,
		Narrow: NewWord32,
		Mask:   &SpinMask{},
	}
}

// hostWord64 keeps the head on its own cache line.
type hostWord64 struct {
	_ cpu.CacheLinePad
	v atomic.Uint64
	_ cpu.CacheLinePad
}

// NewWord64 returns a Word64 backed by sync/atomic.
func NewWord64() Word64 { return &hostWord64{} }

func (w *hostWord64) Load() uint64                        { return w.v.Load() }
func (w *hostWord64) Store(v uint64)                      { w.v.Store(v) }
func (w *hostWord64) CompareAndSwap(old, new uint64) bool { return w.v.CompareAndSwap(old, new) }

type hostWord32 struct {
	_ cpu.CacheLinePad
	v atomic.Uint32
	_ cpu.CacheLinePad
}

// NewWord32 returns a Word32 backed by sync/atomic.
func NewWord32() Word32 { return &hostWord32{} }

func (w *hostWord32) Load() uint32                        { return w.v.Load() }
func (w *hostWord32) Store(v uint32)                      { w.v.Store(v) }
func (w *hostWord32) CompareAndSwap(old, new uint32) bool { return w.v.CompareAndSwap(old, new) }

// SpinMask stands in for a single-core interrupt disable when several
// goroutines share a pool on a host. Holding the mask excludes every other
// holder, which is what masking interrupts achieves on one core.
//
// SpinMask does not support nesting from the same goroutine.
type SpinMask struct {
	_    cpu.CacheLinePad
	held atomic.Bool
	_    cpu.CacheLinePad
}

// Disable spins until the mask is acquired.
func (m *SpinMask) Disable() MaskState {
	for !m.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
	return Unmasked
}

// Restore releases the mask if s is the state of an unmasked caller.
func (m *SpinMask) Restore(s MaskState) {
	if s == Unmasked {
		m.held.Store(false)
	}
}

// Features reports the host CPU's atomic instructions relevant to pool
// strategy selection.
type Features struct {
	Arch string
	// CX16 is CMPXCHG16B on amd64 (double-width CAS for 64-bit pointers).
	CX16 bool
	// LSE is the ARMv8.1 atomics extension on arm64.
	LSE bool
}

// Describe returns the features of the running CPU.
func Describe() Features {
	return Features{
		Arch: runtime.GOARCH,
		CX16: cpu.X86.HasCX16,
		LSE:  cpu.ARM64.HasATOMICS,
	}
}
