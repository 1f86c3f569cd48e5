package slotpool

import (
	"fmt"
	"math"
	"reflect"
	"sync/atomic"
	"unsafe"

	"github.com/pavanmanishd/slotpool/internal/freelist"
)

// slot is one fixed-size region of the pool. next is meaningful only while
// the slot is on the free list. lease is even while free and odd while
// owned, and advances on every transition.
type slot[T any] struct {
	next  atomic.Uint32
	lease atomic.Uint32
	val   T
}

// slots is the backing storage, created once by Init.
type slots[T any] []slot[T]

func (s slots[T]) Next(i uint32) uint32   { return s[i].next.Load() }
func (s slots[T]) SetNext(i, next uint32) { s[i].next.Store(next) }

// link chains every slot into one list, 0 first, and returns its head. It
// runs before the pool is shared.
func (s slots[T]) link() uint32 {
	for i := range s {
		next := uint32(i + 1)
		if i == len(s)-1 {
			next = freelist.Nil
		}
		s[i].next.Store(next)
		s[i].lease.Store(0)
	}
	return 0
}

// newSlots allocates storage for n slots, on the Go heap or in an anonymous
// mapping.
func newSlots[T any](n int, offHeap bool) (slots[T], error) {
	if !offHeap {
		return make(slots[T], n), nil
	}
	if t := reflect.TypeFor[T](); hasPointers(t) {
		return nil, fmt.Errorf("%w: off-heap storage needs a pointer-free element type, %s has pointers",
			ErrInvalidConfig, t)
	}

	var zero slot[T]
	size := int(unsafe.Sizeof(zero))
	if n > math.MaxInt/size {
		return nil, fmt.Errorf("%w: %d slots of %d bytes overflow", ErrInvalidConfig, n, size)
	}
	mem, err := mapAnon(size * n)
	if err != nil {
		return nil, fmt.Errorf("map %d slots: %w", n, err)
	}
	if uintptr(unsafe.Pointer(&mem[0]))%unsafe.Alignof(zero) != 0 {
		return nil, fmt.Errorf("%w: mapping is not aligned for %d-byte slots", ErrInvalidConfig, unsafe.Alignof(zero))
	}
	return unsafe.Slice((*slot[T])(unsafe.Pointer(&mem[0])), n), nil
}

// hasPointers reports whether values of t contain anything the garbage
// collector must trace.
func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
