package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/pmemkit/pool"
	"github.com/joshuapare/pmemkit/pool/tx"
	"github.com/joshuapare/pmemkit/pvec"
)

var shrink bool

func init() {
	vecCmd := &cobra.Command{
		Use:   "vec",
		Short: "Edit the int64 vector at a pool's root",
		Long: `The vec commands operate on a vector of int64 values kept as the pool's
root object. The vector is created empty on first use.`,
	}
	vecCmd.AddCommand(newVecPushCmd(), newVecPopCmd(), newVecListCmd(), newVecClearCmd())
	rootCmd.AddCommand(vecCmd)
}

func newVecPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push <pool> <value>...",
		Short: "Append values in one transaction",
		Long: `The push command appends the given values. Either all of them are
appended or, on any failure, none are.

Example:
  pmemctl vec push data.pool 1 2 3`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVecPush(cmd.Context(), args)
		},
	}
}

func newVecPopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pop <pool>",
		Short: "Remove and print the last value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVecPop(cmd.Context(), args)
		},
	}
}

func newVecListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <pool>...",
		Short: "Print the values of one or more pools",
		Long: `The list command prints the vector of each pool. Pools are opened and
read concurrently and printed in argument order.

Example:
  pmemctl vec list a.pool b.pool --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVecList(cmd.Context(), args)
		},
	}
}

func newVecClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear <pool>",
		Short: "Remove all values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVecClear(cmd.Context(), args)
		},
	}
	cmd.Flags().BoolVar(&shrink, "shrink", false, "Also release the vector's storage")
	return cmd
}

// withVector opens the pool at path, hands its root vector to fn and closes
// the pool.
func withVector(ctx context.Context, path string, fn func(p *pool.Pool, reg *pool.Registry, v *pvec.Vector[int64]) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	reg := pool.NewRegistry()
	p, err := pool.OpenContext(ctx, path, poolOptions(reg))
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if cerr := p.Close(); err == nil {
			err = cerr
		}
	}()

	v, err := pvec.Root[int64](ctx, reg, p)
	if err != nil {
		return err
	}
	return fn(p, reg, v)
}

func parseValues(args []string) ([]int64, error) {
	values := make([]int64, len(args))
	for i, a := range args {
		n, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", a, err)
		}
		values[i] = n
	}
	return values, nil
}

func runVecPush(ctx context.Context, args []string) error {
	values, err := parseValues(args[1:])
	if err != nil {
		return err
	}
	return withVector(ctx, args[0], func(p *pool.Pool, reg *pool.Registry, v *pvec.Vector[int64]) error {
		t, err := p.Begin(ctx)
		if err != nil {
			return err
		}
		defer t.End()
		tctx := tx.NewContext(ctx, t)
		for _, value := range values {
			if err := v.PushBack(tctx, reg, value); err != nil {
				return err
			}
		}
		if err := t.Commit(); err != nil {
			return err
		}
		printVerbose("Pushed %d values\n", len(values))
		printInfo("%d\n", v.Len(reg))
		return nil
	})
}

func runVecPop(ctx context.Context, args []string) error {
	return withVector(ctx, args[0], func(p *pool.Pool, reg *pool.Registry, v *pvec.Vector[int64]) error {
		last, err := v.Back(reg)
		if err != nil {
			return err
		}
		if err := v.PopBack(ctx, reg); err != nil {
			return err
		}
		if jsonOut {
			return printJSON(last)
		}
		printInfo("%d\n", last)
		return nil
	})
}

type listResult struct {
	Path     string  `json:"path"`
	Capacity int     `json:"capacity"`
	Values   []int64 `json:"values"`
}

func runVecList(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]listResult, len(args))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range args {
		g.Go(func() error {
			return withVector(gctx, path, func(p *pool.Pool, reg *pool.Registry, v *pvec.Vector[int64]) error {
				values, err := v.Values(reg)
				if err != nil {
					return err
				}
				results[i] = listResult{Path: path, Capacity: v.Cap(reg), Values: values}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(results)
	}
	for _, r := range results {
		strs := make([]string, len(r.Values))
		for i, x := range r.Values {
			strs[i] = strconv.FormatInt(x, 10)
		}
		if len(results) > 1 {
			printInfo("%s: ", r.Path)
		}
		printInfo("[%s]\n", strings.Join(strs, " "))
		printVerbose("  %d of %d slots used\n", len(r.Values), r.Capacity)
	}
	return nil
}

func runVecClear(ctx context.Context, args []string) error {
	return withVector(ctx, args[0], func(p *pool.Pool, reg *pool.Registry, v *pvec.Vector[int64]) error {
		if shrink {
			return v.Free(ctx, reg)
		}
		return v.Clear(ctx, reg)
	})
}
