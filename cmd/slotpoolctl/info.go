package main

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pavanmanishd/slotpool"
	"github.com/pavanmanishd/slotpool/hal"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Report host atomics and the strategy a pool would use",
		Long: `The info command builds a pool with the given flags and reports the
primitives it saw, the strategy it selected and the memory it occupies.

Example:
  slotpoolctl info
  slotpoolctl info --capacity 100000 --without cas64
  slotpoolctl info --strategy masked --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo()
		},
	}
	addPoolFlags(cmd)
	return cmd
}

// PoolInfo is the output of the info command.
type PoolInfo struct {
	Arch         string `json:"arch"`
	CX16         bool   `json:"cx16"`
	LSE          bool   `json:"lse"`
	Capabilities string `json:"capabilities"`
	Strategy     string `json:"strategy"`
	Capacity     int    `json:"capacity"`
	SlotSize     int    `json:"slot_size"`
	TotalBytes   uint64 `json:"total_bytes"`
	OffHeap      bool   `json:"off_heap"`
}

func runInfo() error {
	cfg, caps, err := poolConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(os.Stderr)
	if err != nil {
		return err
	}

	printVerbose("Building pool: capacity %d, strategy %s, capabilities %s\n", cfg.Capacity, cfg.Strategy, caps)

	p, err := slotpool.New[sample](cfg, slotpool.WithCapabilities(caps), slotpool.WithLogger(log))
	if err != nil {
		return err
	}

	feat := hal.Describe()
	info := PoolInfo{
		Arch:         feat.Arch,
		CX16:         feat.CX16,
		LSE:          feat.LSE,
		Capabilities: caps.String(),
		Strategy:     p.Strategy().String(),
		Capacity:     p.Capacity(),
		SlotSize:     p.SlotSize(),
		TotalBytes:   uint64(p.SlotSize()) * uint64(p.Capacity()),
		OffHeap:      cfg.OffHeap,
	}

	if jsonOut {
		return printJSON(info)
	}

	printInfo("\nHost:\n")
	printInfo("  Arch: %s\n", info.Arch)
	printInfo("  CMPXCHG16B: %t\n", info.CX16)
	printInfo("  ARMv8.1 atomics: %t\n", info.LSE)
	printInfo("\nPool:\n")
	printInfo("  Capabilities: %s\n", info.Capabilities)
	printInfo("  Strategy: %s\n", info.Strategy)
	printInfo("  Capacity: %s slots\n", humanize.Comma(int64(info.Capacity)))
	printInfo("  Slot size: %s\n", humanize.IBytes(uint64(info.SlotSize)))
	printInfo("  Total: %s\n", humanize.IBytes(info.TotalBytes))
	printInfo("  Off-heap: %t\n", info.OffHeap)
	return nil
}
