package sim

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/pavanmanishd/slotpool/internal/freelist"
)

// OpKind is a pool operation.
type OpKind uint8

const (
	OpAlloc OpKind = iota + 1
	OpFree
)

func (k OpKind) String() string {
	switch k {
	case OpAlloc:
		return "alloc"
	case OpFree:
		return "free"
	default:
		return fmt.Sprintf("OpKind(%d)", uint8(k))
	}
}

// Step is one operation of a program. Alloc binds the slot it gets to Name;
// Free releases the slot bound to Name. Preempt lists interrupt handlers
// raised in this step's preemption window.
type Step struct {
	Op      OpKind
	Name    string
	Preempt []Program
}

// Program is the code run by one execution context.
type Program struct {
	Context string
	Steps   []Step
}

// Alloc returns an alloc step.
func Alloc(name string, preempt ...Program) Step {
	return Step{Op: OpAlloc, Name: name, Preempt: preempt}
}

// Free returns a free step.
func Free(name string, preempt ...Program) Step {
	return Step{Op: OpFree, Name: name, Preempt: preempt}
}

// ABA is the classic hazard: thread mode pops while an interrupt pops two
// slots and pushes the first back, then frees everything.
func ABA() Program {
	irq := Program{Context: "irq", Steps: []Step{
		Alloc("x"),
		Alloc("y"),
		Free("x"),
	}}
	return Program{Context: "main", Steps: []Step{
		Alloc("a", irq),
		Free("y"),
		Free("a"),
	}}
}

// Random returns a program of n steps whose steps are preempted with
// probability 1/3 by handlers nested at most depth levels.
func Random(rng *rand.Rand, n, depth int) Program {
	g := &generator{rng: rng}
	return g.program("main", n, depth)
}

type generator struct {
	rng   *rand.Rand
	names []string
	next  int
	ctx   int
}

func (g *generator) program(ctx string, n, depth int) Program {
	p := Program{Context: ctx}
	for i := 0; i < n; i++ {
		var s Step
		if len(g.names) == 0 || g.rng.IntN(2) == 0 {
			name := "h" + strconv.Itoa(g.next)
			g.next++
			g.names = append(g.names, name)
			s = Alloc(name)
		} else {
			s = Free(g.names[g.rng.IntN(len(g.names))])
		}
		if depth > 0 && g.rng.IntN(3) == 0 {
			g.ctx++
			s.Preempt = append(s.Preempt, g.program("irq"+strconv.Itoa(g.ctx), 1+g.rng.IntN(3), depth-1))
		}
		p.Steps = append(p.Steps, s)
	}
	return p
}

// Event is the completion of one step.
type Event struct {
	Context   string
	Op        OpKind
	Name      string
	Slot      int // -1 when the step failed or was skipped
	OK        bool
	Depth     int
	Available int
}

func (e Event) String() string {
	res := "oom"
	switch {
	case e.OK:
		res = "slot " + strconv.Itoa(e.Slot)
	case e.Op == OpFree:
		res = "skipped"
	}
	return fmt.Sprintf("%s%s %s %s -> %s (avail %d)",
		strings.Repeat("  ", e.Depth), e.Context, e.Op, e.Name, res, e.Available)
}

// Trace is a completion-ordered list of events.
type Trace []Event

func (t Trace) String() string {
	var b strings.Builder
	for _, e := range t {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Diff returns the index of the first differing event, or -1.
func (t Trace) Diff(o Trace) int {
	for i := range t {
		if i >= len(o) || t[i] != o[i] {
			return i
		}
	}
	if len(o) > len(t) {
		return len(t)
	}
	return -1
}

// Target is the pool under test as seen by a Runner.
type Target interface {
	Alloc() (slot int, ok bool)
	Free(slot int)
	Available() int
}

type frame struct {
	handlers []Program
	fired    bool
}

// Runner executes programs against a Target on an emulated core. Install
// Hook as the pool's preemption hook.
type Runner struct {
	core    *Core
	target  Target
	held    map[string]int
	frames  []*frame
	trace   Trace
	windows int
}

// NewRunner returns a Runner on core.
func NewRunner(core *Core) *Runner {
	return &Runner{core: core, held: map[string]int{}}
}

// Hook raises the handlers of the innermost step in flight, once per step.
func (r *Runner) Hook(freelist.Point) {
	r.windows++
	if len(r.frames) == 0 {
		return
	}
	f := r.frames[len(r.frames)-1]
	if f.fired {
		return
	}
	f.fired = true
	for _, h := range f.handlers {
		r.core.Raise(func() { r.exec(h) })
	}
}

// Run executes p against t and returns the trace of every step, including
// the steps of interrupt handlers.
func (r *Runner) Run(t Target, p Program) Trace {
	r.target = t
	r.trace = nil
	r.exec(p)
	return r.trace
}

func (r *Runner) exec(p Program) {
	for _, s := range p.Steps {
		r.frames = append(r.frames, &frame{handlers: s.Preempt})
		ev := Event{Context: p.Context, Op: s.Op, Name: s.Name, Slot: -1, Depth: r.core.Depth()}
		switch s.Op {
		case OpAlloc:
			if slot, ok := r.target.Alloc(); ok {
				r.held[s.Name] = slot
				ev.Slot, ev.OK = slot, true
			}
		case OpFree:
			if slot, ok := r.held[s.Name]; ok {
				// Ownership leaves the name before the free starts, so a
				// handler in the window cannot free it again.
				delete(r.held, s.Name)
				r.target.Free(slot)
				ev.Slot, ev.OK = slot, true
			}
		}
		r.frames = r.frames[:len(r.frames)-1]
		ev.Available = r.target.Available()
		r.trace = append(r.trace, ev)
	}
}

// Held returns the number of slots bound to names.
func (r *Runner) Held() int { return len(r.held) }

// Windows is the number of preemption windows crossed.
func (r *Runner) Windows() int { return r.windows }

// Release frees every slot still bound to a name.
func (r *Runner) Release() {
	for name, slot := range r.held {
		delete(r.held, name)
		r.target.Free(slot)
	}
}
