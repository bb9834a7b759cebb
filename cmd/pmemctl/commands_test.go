package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pmemkit/pool"
	"github.com/joshuapare/pmemkit/pool/dirty"
)

func TestCreateAndInfo(t *testing.T) {
	resetGlobals(t)
	path := newPoolPath(t)

	out, err := captureOutput(t, func() error { return runInfo([]string{path}) })
	require.NoError(t, err)
	assert.Contains(t, out, "Layout:     pmemctl-vector")
	assert.Contains(t, out, "State:      consistent")
	assert.Contains(t, out, "Root:       none")

	jsonOut = true
	out, err = captureOutput(t, func() error { return runInfo([]string{path}) })
	require.NoError(t, err)
	var info pool.Info
	decodeJSON(t, out, &info)
	assert.Equal(t, uint64(1<<20), info.Size)
	assert.True(t, info.Consistent)

	_, err = captureOutput(t, func() error { return runCreate([]string{path}) })
	require.ErrorIs(t, err, pool.ErrExists)

	_, err = captureOutput(t, func() error { return runInfo([]string{filepath.Join(t.TempDir(), "missing")}) })
	require.Error(t, err)
}

func TestVecCommands(t *testing.T) {
	resetGlobals(t)
	ctx := context.Background()
	path := newPoolPath(t)

	out, err := captureOutput(t, func() error { return runVecPush(ctx, []string{path, "1", "2", "3"}) })
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	_, err = captureOutput(t, func() error { return runVecPush(ctx, []string{path, "4", "five"}) })
	require.Error(t, err)

	out, err = captureOutput(t, func() error { return runVecList(ctx, []string{path}) })
	require.NoError(t, err)
	assert.Equal(t, "[1 2 3]\n", out)

	out, err = captureOutput(t, func() error { return runVecPop(ctx, []string{path}) })
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	require.NoError(t, runVecClear(ctx, []string{path}))
	out, err = captureOutput(t, func() error { return runVecList(ctx, []string{path}) })
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)

	_, err = captureOutput(t, func() error { return runVecPop(ctx, []string{path}) })
	require.Error(t, err)

	info, err := pool.Inspect(path)
	require.NoError(t, err)
	assert.NotZero(t, info.RootOffset)
	assert.True(t, info.Consistent)
}

func TestVecList_ManyPools(t *testing.T) {
	resetGlobals(t)
	ctx := context.Background()
	a, b := newPoolPath(t), newPoolPath(t)
	require.NoError(t, runVecPushQuiet(t, ctx, a, "1"))
	require.NoError(t, runVecPushQuiet(t, ctx, b, "2", "3"))

	jsonOut = true
	out, err := captureOutput(t, func() error { return runVecList(ctx, []string{a, b}) })
	require.NoError(t, err)
	var results []listResult
	decodeJSON(t, out, &results)
	require.Len(t, results, 2)
	assert.Equal(t, []int64{1}, results[0].Values)
	assert.Equal(t, []int64{2, 3}, results[1].Values)
	assert.Equal(t, b, results[1].Path)
}

func runVecPushQuiet(t *testing.T, ctx context.Context, path string, values ...string) error {
	t.Helper()
	_, err := captureOutput(t, func() error { return runVecPush(ctx, append([]string{path}, values...)) })
	return err
}

func TestVecClear_Shrink(t *testing.T) {
	resetGlobals(t)
	ctx := context.Background()
	path := newPoolPath(t)
	require.NoError(t, runVecPushQuiet(t, ctx, path, "1", "2"))

	shrink = true
	require.NoError(t, runVecClear(ctx, []string{path}))

	jsonOut = true
	out, err := captureOutput(t, func() error { return runVecList(ctx, []string{path}) })
	require.NoError(t, err)
	var results []listResult
	decodeJSON(t, out, &results)
	require.Len(t, results, 1)
	assert.Zero(t, results[0].Capacity)
	assert.Empty(t, results[0].Values)
}

func TestCheck(t *testing.T) {
	resetGlobals(t)
	path := newPoolPath(t)
	require.NoError(t, runVecPushQuiet(t, context.Background(), path, "7"))

	jsonOut = true
	out, err := captureOutput(t, func() error { return runCheck(context.Background(), []string{path}) })
	require.NoError(t, err)
	var res checkResult
	decodeJSON(t, out, &res)
	assert.False(t, res.Recovered)
	assert.Equal(t, 2, res.Heap.AllocatedBlocks)

	// check ignores the configured layout.
	cfg.Layout = "other"
	_, err = captureOutput(t, func() error { return runCheck(context.Background(), []string{path}) })
	require.NoError(t, err)
}

func TestMetricsFile(t *testing.T) {
	resetGlobals(t)
	require.NoError(t, setupMetrics())
	path := newPoolPath(t)
	require.NoError(t, runVecPushQuiet(t, context.Background(), path, "1"))

	n, err := testutil.GatherAndCount(metricsReg, "pmemkit_tx_commits_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	metricsFile = filepath.Join(t.TempDir(), "pmemctl.prom")
	require.NoError(t, writeMetrics())
	b, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), "pmemkit_tx_commits_total")
}

// newFlagCmd returns a command carrying the root's persistent flags, parsed
// from args.
func newFlagCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().AddFlagSet(rootCmd.PersistentFlags())
	require.NoError(t, cmd.ParseFlags(args))
	t.Cleanup(func() {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	})
	return cmd
}

func TestLoadConfig_Precedence(t *testing.T) {
	resetGlobals(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "layout = \"from-file\"\nsize = \"4MiB\"\nflush_mode = \"full\"\nlog_level = \"info\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cmd := newFlagCmd(t, "--config", path, "--layout", "from-flag", "--log-size", "64KiB")
	require.NoError(t, loadConfig(cmd))

	assert.Equal(t, "from-flag", cfg.Layout)
	assert.Equal(t, uint64(4<<20), cfg.Size)
	assert.Equal(t, uint64(64<<10), cfg.LogSize)
	assert.Equal(t, dirty.FlushFull, cfg.FlushMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotNil(t, collector)
}

func TestLoadConfig_Errors(t *testing.T) {
	resetGlobals(t)
	t.Setenv("HOME", t.TempDir())

	cmd := newFlagCmd(t, "--config", filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorContains(t, loadConfig(cmd), "not found")

	resetGlobals(t)
	cmd = newFlagCmd(t, "--size", "tiny")
	require.ErrorContains(t, loadConfig(cmd), "parse size")

	resetGlobals(t)
	cmd = newFlagCmd(t, "--log-level", "loud")
	require.ErrorContains(t, loadConfig(cmd), "log level")
}
