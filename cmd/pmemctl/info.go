package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/pmemkit/pool"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <pool>",
		Short: "Report pool header metadata",
		Long: `The info command reads a pool header without opening the pool for
writing and without running recovery. A pool whose last transaction did not
finish is reported as inconsistent; opening it rolls that transaction back.

Example:
  pmemctl info data.pool
  pmemctl info data.pool --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args)
		},
	}
}

func runInfo(args []string) error {
	path := args[0]
	printVerbose("Reading header: %s\n", path)

	info, err := pool.Inspect(path)
	if err != nil {
		return fmt.Errorf("failed to read pool: %w", err)
	}
	if jsonOut {
		return printJSON(info)
	}

	printInfo("\nPool Information:\n")
	printInfo("  File:       %s\n", info.Path)
	printInfo("  Layout:     %s\n", info.Layout)
	printInfo("  UUID:       %s\n", info.UUID)
	printInfo("  Version:    %s\n", info.Version)
	printInfo("  Size:       %s\n", humanize.IBytes(info.Size))
	printInfo("  Undo log:   %s at 0x%x, %d entries\n", humanize.IBytes(info.LogSize), info.LogOffset, info.LogEntries)
	printInfo("  Heap:       %s at 0x%x\n", humanize.IBytes(info.HeapSize), info.HeapOffset)
	if info.RootOffset != 0 {
		printInfo("  Root:       %d bytes at 0x%x\n", info.RootSize, info.RootOffset)
	} else {
		printInfo("  Root:       none\n")
	}
	printInfo("  Sequence:   %d/%d\n", info.PrimarySeq, info.SecondarySeq)
	printInfo("  Last write: %s (%s)\n", info.LastWrite.Format(time.RFC3339), humanize.Time(info.LastWrite))
	if info.Consistent {
		printInfo("  State:      consistent\n")
	} else {
		printInfo("  State:      interrupted transaction, recovery pending\n")
	}
	return nil
}
