package slotpool

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// frame is the payload used throughout the tests.
type frame struct {
	Seq   uint64
	Owner uint32
	Data  [20]byte
}

// requirePanicIs runs fn and requires it to panic with an error wrapping
// target.
func requirePanicIs(t *testing.T, target error, fn func()) {
	t.Helper()
	var recovered any
	func() {
		defer func() { recovered = recover() }()
		fn()
	}()
	require.NotNil(t, recovered, "expected panic wrapping %v", target)
	err, ok := recovered.(error)
	require.True(t, ok, "panic value %v is not an error", recovered)
	require.True(t, errors.Is(err, target), "panic %v does not wrap %v", err, target)
}

func newPool[T any](t *testing.T, cfg Config, opts ...Option) *Pool[T] {
	t.Helper()
	p, err := New[T](cfg, opts...)
	require.NoError(t, err)
	return p
}

func strategies() []Strategy {
	return []Strategy{StrategyTagged, StrategyPacked, StrategyMasked}
}

func forEachStrategy(t *testing.T, fn func(t *testing.T, s Strategy)) {
	for _, s := range strategies() {
		t.Run(fmt.Sprint(s), func(t *testing.T) { fn(t, s) })
	}
}
