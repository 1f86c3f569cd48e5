package slotpool

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/pavanmanishd/slotpool/hal"
	"github.com/pavanmanishd/slotpool/internal/sim"
)

// runScripted executes prog against a fresh pool on an emulated core and
// audits the pool afterwards.
func runScripted(t *testing.T, s Strategy, capacity int, prog sim.Program) (sim.Trace, *sim.Core) {
	t.Helper()
	core := &sim.Core{}
	r := sim.NewRunner(core)
	caps := hal.Capabilities{Wide: hal.NewWord64, Narrow: hal.NewWord32, Mask: core}

	p := newPool[frame](t, Config{Capacity: capacity, Strategy: s, Debug: true},
		WithCapabilities(caps),
		WithPreemptHook(func(pt Point) { r.Hook(pt) }),
	)
	tr := r.Run(sim.Adapt[Handle[frame]](p), prog)

	require.Equal(t, r.Held(), p.InUse())
	_, err := p.Audit()
	require.NoError(t, err, "after %s run:\n%s", s, tr)

	r.Release()
	rep, err := p.Audit()
	require.NoError(t, err)
	require.Equal(t, capacity, rep.Free)
	return tr, core
}

func TestScriptedABA(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, s Strategy) {
		tr, core := runScripted(t, s, 4, sim.ABA())

		require.Len(t, tr, 6)
		// The handler takes 0 and 1 and gives 0 back. The preempted alloc
		// must then take 0 again, never 1 which the handler still holds.
		assert.Equal(t, 0, tr[3].Slot)
		assert.Equal(t, "main", tr[3].Context)
		assert.Equal(t, 1, core.MaxDepth())
	})
}

func TestCapacityFourUnderInterrupts(t *testing.T) {
	irq := func(steps ...sim.Step) sim.Program { return sim.Program{Context: "irq", Steps: steps} }
	prog := sim.Program{Context: "main", Steps: []sim.Step{
		sim.Alloc("h1"),
		sim.Alloc("h2", irq(sim.Alloc("i1"), sim.Free("i1"))),
		sim.Alloc("h3"),
		sim.Alloc("h4"),
		sim.Alloc("h5", irq(sim.Free("h1"))),
		sim.Alloc("h6"),
	}}

	forEachStrategy(t, func(t *testing.T, s Strategy) {
		tr, _ := runScripted(t, s, 4, prog)

		// h5 is preempted by a handler that frees h1, so it gets h1's slot
		// and h6 finds the pool empty.
		byName := map[string]sim.Event{}
		for _, e := range tr {
			byName[e.Name+"/"+e.Op.String()] = e
		}
		assert.True(t, byName["h5/alloc"].OK)
		assert.Equal(t, byName["h1/alloc"].Slot, byName["h5/alloc"].Slot)
		assert.False(t, byName["h6/alloc"].OK)
		assert.Equal(t, 0, byName["h6/alloc"].Available)
	})
}

func TestScriptedTracesMatchAcrossStrategies(t *testing.T) {
	programs := []sim.Program{sim.ABA()}
	for seed := uint64(1); seed <= 40; seed++ {
		programs = append(programs, sim.Random(rand.New(rand.NewPCG(seed, 7)), 40, 3))
	}

	for i, prog := range programs {
		want, _ := runScripted(t, StrategyTagged, 4, prog)
		for _, s := range []Strategy{StrategyPacked, StrategyMasked} {
			got, _ := runScripted(t, s, 4, prog)
			require.Equal(t, -1, want.Diff(got), "program %d, tagged vs %s:\n%s\n%s", i, s, want, got)
		}

		// Nothing is lost: a failed alloc only happens with every slot
		// owned.
		for _, e := range want {
			if e.Op == sim.OpAlloc && !e.OK {
				assert.Equal(t, 0, e.Available, "program %d: spurious out of memory at %s", i, e)
			}
		}
	}
}

func TestNestedInterruptsShareThePool(t *testing.T) {
	nested := sim.Program{Context: "irq2", Steps: []sim.Step{sim.Alloc("z"), sim.Free("z")}}
	inner := sim.Program{Context: "irq1", Steps: []sim.Step{
		sim.Alloc("y", nested),
		sim.Free("y", nested),
	}}
	prog := sim.Program{Context: "main", Steps: []sim.Step{
		sim.Alloc("a", inner),
		sim.Free("a", inner),
	}}

	forEachStrategy(t, func(t *testing.T, s Strategy) {
		tr, core := runScripted(t, s, 3, prog)
		assert.Equal(t, 2, core.MaxDepth())
		for _, e := range tr {
			if e.Op == sim.OpAlloc {
				assert.True(t, e.OK, "%s", e)
			}
		}
	})
}

func TestConcurrentOwnership(t *testing.T) {
	const (
		workers = 8
		rounds  = 2000
	)
	forEachStrategy(t, func(t *testing.T, s Strategy) {
		var mask hal.SpinMask
		caps := hal.Host()
		caps.Mask = &mask
		p := newPool[frame](t, Config{Capacity: 16, Strategy: s}, WithCapabilities(caps))

		var ooms atomic.Int64
		g, _ := errgroup.WithContext(context.Background())
		for w := range workers {
			g.Go(func() error {
				held := make([]Handle[frame], 0, 4)
				for i := range rounds {
					if len(held) < cap(held) {
						h, err := p.Alloc()
						if err != nil {
							ooms.Add(1)
						} else {
							h.Store(frame{Seq: uint64(i), Owner: uint32(w)})
							held = append(held, h)
						}
					}
					if len(held) > 0 && i%3 != 0 {
						h := held[len(held)-1]
						held = held[:len(held)-1]
						v := h.Load()
						if v.Owner != uint32(w) {
							t.Errorf("worker %d read payload of worker %d from slot %d", w, v.Owner, h.Slot())
						}
						h.Free()
					}
				}
				for _, h := range held {
					h.Free()
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())

		r, err := p.Audit()
		require.NoError(t, err)
		assert.Equal(t, 16, r.Free)
		m := p.Metrics()
		assert.Equal(t, m.Allocs, m.Frees)
		assert.Equal(t, uint64(ooms.Load()), m.OutOfMemory)
	})
}
