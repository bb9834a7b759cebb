package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pmemkit/internal/config"
	"github.com/joshuapare/pmemkit/pkg/log"
)

// resetGlobals restores the package state a command run depends on.
func resetGlobals(t *testing.T) {
	t.Helper()
	verbose, quiet, jsonOut, shrink = false, false, false, false
	configPath, metricsFile = "", ""
	cfg = config.Default()
	cfg.Size = 1 << 20
	cfg.LogSize = 16 << 10
	logger = log.NoopLogger{}
	metricsReg = prometheus.NewRegistry()
	collector = nil
	t.Cleanup(func() {
		verbose, quiet, jsonOut, shrink = false, false, false, false
	})
}

// newPoolPath creates a pool in a temp dir and returns its path.
func newPoolPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pool")
	_, err := captureOutput(t, func() error { return runCreate([]string{path}) })
	require.NoError(t, err)
	return path
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	return buf.String(), fnErr
}

// decodeJSON unmarshals command output into v.
func decodeJSON(t *testing.T, output string, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(output), v), "output is not JSON: %s", output)
}
