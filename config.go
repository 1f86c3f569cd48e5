package slotpool

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavanmanishd/slotpool/hal"
	"github.com/pavanmanishd/slotpool/internal/freelist"
)

// DefaultCapacity is the capacity used by DefaultConfig.
const DefaultCapacity = 64

// Strategy selects how the free-list head is protected.
type Strategy uint8

const (
	// StrategyAuto picks the best strategy the target supports: tagged, then
	// packed, then masked.
	StrategyAuto Strategy = iota
	// StrategyTagged uses a 64-bit CAS over (slot, 32-bit generation).
	StrategyTagged
	// StrategyPacked uses a 32-bit CAS over (16-bit slot, 16-bit generation).
	// Capacity is limited to 65535. The generation wraps after 65536
	// operations on the head.
	StrategyPacked
	// StrategyMasked runs push and pop with interrupts masked.
	StrategyMasked
)

func (s Strategy) String() string {
	switch s {
	case StrategyAuto:
		return "auto"
	case StrategyTagged:
		return "tagged"
	case StrategyPacked:
		return "packed"
	case StrategyMasked:
		return "masked"
	default:
		return fmt.Sprintf("Strategy(%d)", uint8(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStrategy parses the String form of a strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return StrategyAuto, nil
	case "tagged":
		return StrategyTagged, nil
	case "packed":
		return StrategyPacked, nil
	case "masked":
		return StrategyMasked, nil
	}
	return 0, fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, s)
}

// Config fixes the shape of a pool for its whole lifetime.
type Config struct {
	// Capacity is the number of slots. It never changes after Init.
	Capacity int

	// Strategy selects the free-list protection. StrategyAuto chooses from
	// the target's capabilities.
	Strategy Strategy

	// OffHeap places the slots in an anonymous memory mapping outside the Go
	// heap. Only element types without pointers are accepted.
	OffHeap bool

	// Debug enables extra runtime checks: the head is range-checked after
	// every pop and payloads are cleared on free.
	Debug bool
}

// DefaultConfig returns a config with DefaultCapacity slots and automatic
// strategy selection.
func DefaultConfig() Config {
	return Config{
		Capacity: DefaultCapacity,
		Strategy: StrategyAuto,
	}
}

// Validate reports whether c describes a pool that can be built.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.Capacity > freelist.MaxTagged {
		return fmt.Errorf("%w: capacity %d exceeds %d", ErrInvalidConfig, c.Capacity, freelist.MaxTagged)
	}
	if c.Strategy == StrategyPacked && c.Capacity > freelist.MaxPacked {
		return fmt.Errorf("%w: packed strategy supports at most %d slots, got %d",
			ErrInvalidConfig, freelist.MaxPacked, c.Capacity)
	}
	if c.Strategy > StrategyMasked {
		return fmt.Errorf("%w: unknown strategy %d", ErrInvalidConfig, uint8(c.Strategy))
	}
	return nil
}

// Option configures the collaborators of a pool.
type Option func(*options)

type options struct {
	caps  hal.Capabilities
	log   *slog.Logger
	hook  freelist.Hook
	reset any
}

// WithCapabilities sets the primitives of the target. The default is
// hal.Host().
func WithCapabilities(caps hal.Capabilities) Option {
	return func(o *options) { o.caps = caps }
}

// WithLogger sets the logger. The pool logs at Init, on failed audits and
// before panicking on a programming error; never from Alloc or Free.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// Point names a preemption window inside Alloc or Free.
type Point = freelist.Point

const (
	PointPop  = freelist.PointPop
	PointPush = freelist.PointPush
)

// WithPreemptHook installs a function called at every preemption window of
// the free list. It exists for simulators and tests that need to run an
// interrupt handler at the worst possible moment.
func WithPreemptHook(hook func(Point)) Option {
	return func(o *options) { o.hook = hook }
}

// WithReset sets a function run on the payload of every slot as it is freed,
// before it returns to the free list.
func WithReset[T any](fn func(*T)) Option {
	return func(o *options) { o.reset = fn }
}

// selectStrategy resolves StrategyAuto against caps and checks that a
// forced strategy is supported.
func selectStrategy(cfg Config, caps hal.Capabilities) (Strategy, error) {
	switch cfg.Strategy {
	case StrategyAuto:
		switch {
		case caps.Wide != nil:
			return StrategyTagged, nil
		case caps.Narrow != nil && cfg.Capacity <= freelist.MaxPacked:
			return StrategyPacked, nil
		case caps.Mask != nil:
			return StrategyMasked, nil
		}
		return 0, fmt.Errorf("%w: capabilities %s, capacity %d", ErrNoPrimitive, caps, cfg.Capacity)
	case StrategyTagged:
		if caps.Wide == nil {
			return 0, fmt.Errorf("%w: tagged strategy needs a 64-bit CAS", ErrInvalidConfig)
		}
	case StrategyPacked:
		if caps.Narrow == nil {
			return 0, fmt.Errorf("%w: packed strategy needs a 32-bit CAS", ErrInvalidConfig)
		}
	case StrategyMasked:
		if caps.Mask == nil {
			return 0, fmt.Errorf("%w: masked strategy needs an interrupt mask", ErrInvalidConfig)
		}
	}
	return cfg.Strategy, nil
}
