package slotpool

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrOutOfMemory is returned by Alloc when every slot is in use. It is an
	// expected condition; retrying, backing off or dropping work is up to the
	// caller.
	ErrOutOfMemory = errors.New("slotpool: out of memory")
	// ErrInvalidConfig is returned by Init for a config that cannot be built.
	ErrInvalidConfig = errors.New("slotpool: invalid config")
	// ErrNoPrimitive is returned by Init when the target offers neither a CAS
	// nor an interrupt mask.
	ErrNoPrimitive = errors.New("slotpool: no atomic primitive available")
	// ErrCorrupted is returned by Audit when an invariant does not hold.
	ErrCorrupted = errors.New("slotpool: free list corrupted")
)

// Programming errors. These are never returned; the pool panics with an
// error wrapping one of them, because the free list cannot be trusted
// afterwards.
var (
	ErrAlreadyInitialized = errors.New("slotpool: pool already initialized")
	ErrNotInitialized     = errors.New("slotpool: pool not initialized")
	ErrDoubleFree         = errors.New("slotpool: double free")
	ErrUseAfterFree       = errors.New("slotpool: use after free")
	ErrInvalidHandle      = errors.New("slotpool: invalid handle")
)

// fatal logs and panics. It is the only exit for a violated invariant.
func fatal(log *slog.Logger, err error, msg string, args ...any) {
	if log == nil {
		log = discard
	}
	log.Error(msg, append(args, "error", err)...)
	panic(fmt.Errorf("%w: %s", err, msg))
}

var discard = slog.New(slog.DiscardHandler)
