package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/pmemkit/pool"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <pool>",
		Short: "Create a new pool file",
		Long: `The create command formats a new pool file with the configured size,
undo log size and layout name. It fails if the file already exists.

Example:
  pmemctl create data.pool --size 64MiB --layout inventory`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(args)
		},
	}
}

type createResult struct {
	Path    string `json:"path"`
	Layout  string `json:"layout"`
	UUID    string `json:"uuid"`
	Size    uint64 `json:"size"`
	LogSize uint64 `json:"log_size"`
}

func runCreate(args []string) error {
	path := args[0]
	printVerbose("Creating pool: %s\n", path)

	p, err := pool.Create(path, poolOptions(nil))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	res := createResult{
		Path:    path,
		Layout:  p.Layout(),
		UUID:    p.UUID().String(),
		Size:    cfg.Size,
		LogSize: cfg.LogSize,
	}
	if err := p.Close(); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(res)
	}
	printInfo("Created %s\n", res.Path)
	printInfo("  Layout:   %s\n", res.Layout)
	printInfo("  UUID:     %s\n", res.UUID)
	printInfo("  Size:     %s\n", humanize.IBytes(res.Size))
	printInfo("  Log size: %s\n", humanize.IBytes(res.LogSize))
	return nil
}
