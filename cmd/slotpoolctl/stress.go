package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pavanmanishd/slotpool"
)

var (
	stressWorkers  int
	stressDuration time.Duration
	stressHold     int
	stressIRQRate  float64
	stressIRQBurst int
)

func init() {
	cmd := newStressCmd()
	addPoolFlags(cmd)
	cmd.Flags().IntVar(&stressWorkers, "workers", runtime.GOMAXPROCS(0), "Goroutines allocating and freeing")
	cmd.Flags().DurationVar(&stressDuration, "duration", 2*time.Second, "How long to run")
	cmd.Flags().IntVar(&stressHold, "hold", 4, "Most slots a worker holds at once")
	cmd.Flags().Float64Var(&stressIRQRate, "irq-rate", 10000, "Interrupts per second")
	cmd.Flags().IntVar(&stressIRQBurst, "irq-burst", 4, "Slots an interrupt handler allocates")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Hammer a shared pool from many goroutines",
		Long: `The stress command shares one pool between worker goroutines and an
interrupt goroutine that fires at a fixed rate. Every slot is stamped by its
owner and checked before it is freed. The pool is audited at the end.

Example:
  slotpoolctl stress
  slotpoolctl stress --strategy packed --workers 16 --duration 10s
  slotpoolctl stress --without cas64,cas32 --irq-rate 50000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(cmd.Context())
		},
	}
	return cmd
}

// StressResult is the output of the stress command.
type StressResult struct {
	Workers int                  `json:"workers"`
	Elapsed time.Duration        `json:"elapsed"`
	Ops     uint64               `json:"ops"`
	IRQs    uint64               `json:"irqs"`
	IRQOOM  uint64               `json:"irq_oom"`
	Metrics slotpool.PoolMetrics `json:"metrics"`
	Audit   slotpool.Report      `json:"audit"`
}

// errOverwritten reports a slot whose payload changed while it was owned.
var errOverwritten = errors.New("payload overwritten while owned")

func runStress(ctx context.Context) error {
	if stressWorkers < 1 || stressHold < 1 || stressIRQBurst < 1 || stressIRQRate <= 0 {
		return fmt.Errorf("workers, hold, irq-burst and irq-rate must be positive")
	}
	cfg, caps, err := poolConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(os.Stderr)
	if err != nil {
		return err
	}
	p, err := slotpool.New[sample](cfg, slotpool.WithCapabilities(caps), slotpool.WithLogger(log))
	if err != nil {
		return err
	}

	printVerbose("Stressing %s pool of %d slots with %d workers for %s\n",
		p.Strategy(), p.Capacity(), stressWorkers, stressDuration)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, stressDuration)
	defer cancel()

	var res StressResult
	var ops, irqs, irqOOM atomic.Uint64
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for w := range stressWorkers {
		g.Go(func() error {
			n, err := work(ctx, p, uint32(w+1), stressHold)
			ops.Add(n)
			return err
		})
	}
	g.Go(func() error {
		lim := rate.NewLimiter(rate.Limit(stressIRQRate), stressIRQBurst)
		for {
			// With n=1 and a positive burst, Wait only fails because the
			// context is done or its deadline falls before the next token.
			if err := lim.Wait(ctx); err != nil {
				return nil
			}
			irqs.Add(1)
			oom, err := interrupt(p, stressIRQBurst)
			irqOOM.Add(oom)
			if err != nil {
				return err
			}
		}
	})
	if err := g.Wait(); err != nil {
		return err
	}

	res.Workers = stressWorkers
	res.Elapsed = time.Since(start)
	res.Ops = ops.Load()
	res.IRQs = irqs.Load()
	res.IRQOOM = irqOOM.Load()
	res.Metrics = p.Metrics()
	res.Audit, err = p.Audit()
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(res)
	}
	m := res.Metrics
	printInfo("\nStress:\n")
	printInfo("  Strategy: %s\n", m.Strategy)
	printInfo("  Workers: %d\n", res.Workers)
	printInfo("  Elapsed: %s\n", res.Elapsed.Round(time.Millisecond))
	printInfo("  Ops: %s (%s)\n", humanize.Comma(int64(res.Ops)),
		humanize.SIWithDigits(float64(res.Ops)/res.Elapsed.Seconds(), 2, "ops/s"))
	printInfo("  Interrupts: %s, %s found the pool empty\n",
		humanize.Comma(int64(res.IRQs)), humanize.Comma(int64(res.IRQOOM)))
	printInfo("\nPool:\n")
	printInfo("  Allocs: %s, frees: %s\n", humanize.Comma(int64(m.Allocs)), humanize.Comma(int64(m.Frees)))
	printInfo("  Out of memory: %s\n", humanize.Comma(int64(m.OutOfMemory)))
	printInfo("  CAS retries: %s\n", humanize.Comma(int64(m.Retries)))
	printInfo("  Audit: %d of %d slots free\n", res.Audit.Free, res.Audit.Capacity)
	return nil
}

// work allocates and frees until ctx is done, holding at most hold slots,
// and returns the number of completed alloc/free pairs.
func work(ctx context.Context, p *slotpool.Pool[sample], id uint32, hold int) (uint64, error) {
	held := make([]slotpool.Handle[sample], 0, hold)
	defer func() {
		for _, h := range held {
			h.Free()
		}
	}()

	var n, seq uint64
	for ctx.Err() == nil {
		if len(held) < hold {
			if h, err := p.Alloc(); err == nil {
				seq++
				h.Ptr().seal(id, seq)
				held = append(held, h)
			} else if !errors.Is(err, slotpool.ErrOutOfMemory) {
				return n, err
			}
		}
		if len(held) == hold || (len(held) > 0 && seq%3 == 0) {
			h := held[len(held)-1]
			held = held[:len(held)-1]
			if !h.Ptr().intact(id) {
				return n, fmt.Errorf("worker %d, slot %d: %w", id, h.Slot(), errOverwritten)
			}
			h.Free()
			n++
		}
	}
	return n, nil
}

// interrupt is the body of one emulated interrupt handler: it takes up to
// burst slots, stamps and checks them, and gives them all back before
// returning. It reports how many allocations found the pool empty.
func interrupt(p *slotpool.Pool[sample], burst int) (uint64, error) {
	var buf [16]slotpool.Handle[sample]
	held := buf[:0]
	var oom uint64
	for i := range min(burst, len(buf)) {
		h, err := p.Alloc()
		if err != nil {
			oom++
			continue
		}
		h.Ptr().seal(0, uint64(i))
		held = append(held, h)
	}
	var err error
	for _, h := range held {
		if err == nil && !h.Ptr().intact(0) {
			err = fmt.Errorf("interrupt, slot %d: %w", h.Slot(), errOverwritten)
		}
		h.Free()
	}
	return oom, err
}
