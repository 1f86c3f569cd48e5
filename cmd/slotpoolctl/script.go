package main

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"github.com/pavanmanishd/slotpool"
	"github.com/pavanmanishd/slotpool/hal"
	"github.com/pavanmanishd/slotpool/internal/sim"
)

var (
	scriptSeeds    int
	scriptSeed     uint64
	scriptSteps    int
	scriptDepth    int
	scriptCapacity int
)

func init() {
	cmd := newScriptCmd()
	cmd.Flags().IntVar(&scriptSeeds, "programs", 20, "Number of random programs to run after the ABA scenario")
	cmd.Flags().Uint64Var(&scriptSeed, "seed", 1, "Seed of the first random program")
	cmd.Flags().IntVar(&scriptSteps, "steps", 40, "Steps per random program")
	cmd.Flags().IntVar(&scriptDepth, "depth", 3, "Maximum interrupt nesting")
	cmd.Flags().IntVar(&scriptCapacity, "capacity", 4, "Slots per pool")
	rootCmd.AddCommand(cmd)
}

func newScriptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Replay scripted interrupt interleavings against every strategy",
		Long: `The script command runs the ABA scenario and a set of random programs
on an emulated single core. Interrupt handlers fire inside the preemption
windows of alloc and free. Every program must produce the same trace under
the tagged, packed and masked strategies, and every pool must pass an audit.

Example:
  slotpoolctl script
  slotpoolctl script --programs 500 --depth 4 -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript()
		},
	}
	return cmd
}

var scriptStrategies = []slotpool.Strategy{
	slotpool.StrategyTagged,
	slotpool.StrategyPacked,
	slotpool.StrategyMasked,
}

// ScriptResult is the outcome of one program.
type ScriptResult struct {
	Program  string `json:"program"`
	Events   int    `json:"events"`
	OOM      int    `json:"oom"`
	MaxDepth int    `json:"max_depth"`
	Windows  int    `json:"windows"`
}

func runScript() error {
	if scriptCapacity <= 0 || scriptSteps < 0 || scriptDepth < 0 || scriptSeeds < 0 {
		return fmt.Errorf("capacity must be positive and counts non-negative")
	}
	log, err := newLogger(os.Stderr)
	if err != nil {
		return err
	}

	type named struct {
		name string
		prog sim.Program
	}
	programs := []named{{"aba", sim.ABA()}}
	for i := range scriptSeeds {
		seed := scriptSeed + uint64(i)
		rng := rand.New(rand.NewPCG(seed, seed))
		programs = append(programs, named{fmt.Sprintf("random-%d", seed), sim.Random(rng, scriptSteps, scriptDepth)})
	}

	results := make([]ScriptResult, 0, len(programs))
	for _, np := range programs {
		var want sim.Trace
		res := ScriptResult{Program: np.name}
		for _, s := range scriptStrategies {
			out, err := replay(s, scriptCapacity, np.prog, log)
			if err != nil {
				return fmt.Errorf("%s under %s: %w", np.name, s, err)
			}
			if want == nil {
				want = out.trace
				res.Events = len(out.trace)
				res.MaxDepth = out.maxDepth
				res.Windows = out.windows
				for _, e := range out.trace {
					if e.Op == sim.OpAlloc && !e.OK {
						res.OOM++
					}
				}
				continue
			}
			if i := want.Diff(out.trace); i >= 0 {
				printVerbose("%s trace:\n%s\n%s trace:\n%s", scriptStrategies[0], want, s, out.trace)
				return fmt.Errorf("%s: %s and %s diverge at event %d", np.name, scriptStrategies[0], s, i)
			}
		}
		printVerbose("%s:\n%s\n", np.name, want)
		results = append(results, res)
	}

	if jsonOut {
		return printJSON(results)
	}
	printInfo("\n%-14s %7s %5s %6s %8s\n", "PROGRAM", "EVENTS", "OOM", "DEPTH", "WINDOWS")
	for _, r := range results {
		printInfo("%-14s %7d %5d %6d %8d\n", r.Program, r.Events, r.OOM, r.MaxDepth, r.Windows)
	}
	printInfo("\n%d programs, traces identical across %d strategies\n", len(results), len(scriptStrategies))
	return nil
}

type replayOutput struct {
	trace    sim.Trace
	maxDepth int
	windows  int
}

// replay runs prog against a fresh pool on an emulated core and audits the
// pool before and after releasing what the program still holds.
func replay(s slotpool.Strategy, capacity int, prog sim.Program, log *slog.Logger) (replayOutput, error) {
	core := &sim.Core{}
	r := sim.NewRunner(core)
	caps := hal.Capabilities{Wide: hal.NewWord64, Narrow: hal.NewWord32, Mask: core}

	p, err := slotpool.New[sample](slotpool.Config{Capacity: capacity, Strategy: s, Debug: true},
		slotpool.WithCapabilities(caps),
		slotpool.WithLogger(log),
		slotpool.WithPreemptHook(func(pt slotpool.Point) { r.Hook(pt) }),
	)
	if err != nil {
		return replayOutput{}, err
	}

	out := replayOutput{trace: r.Run(sim.Adapt[slotpool.Handle[sample]](p), prog)}
	out.maxDepth = core.MaxDepth()
	out.windows = r.Windows()

	if held, live := r.Held(), p.InUse(); held != live {
		return out, fmt.Errorf("program holds %d slots, pool has %d live", held, live)
	}
	if _, err := p.Audit(); err != nil {
		return out, err
	}
	r.Release()
	rep, err := p.Audit()
	if err != nil {
		return out, err
	}
	if rep.Free != capacity {
		return out, fmt.Errorf("%d of %d slots free after release", rep.Free, capacity)
	}
	return out, nil
}
