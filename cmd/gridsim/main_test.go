package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestRun_Defaults(t *testing.T) {
	out, err := execute(t, "run", "--steps", "20", "--seed", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "robots:        32")
	assert.Contains(t, out, "steps:         20")
	assert.Contains(t, out, "verify:        ok")
}

func TestRun_ConfigRenderMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("width: 5\nheight: 4\nrobots: 6\nsteps: 10\nstore: hash\n"), 0o600))

	out, err := execute(t, "run", "--config", path, "--render", "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "robots:        6")
	assert.Contains(t, out, "statecache_indexes_registered_total")
	assert.Contains(t, out, `cache="robots"`)
	assert.Contains(t, out, "statecache_commits_total")
}

func TestRun_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("width: 1\nheight: 1\nrobots: 3\n"), 0o600))

	_, err := execute(t, "run", "--config", path)
	assert.Error(t, err)

	_, err = execute(t, "run", "extra")
	assert.Error(t, err)
}

func TestRun_DumpRestore(t *testing.T) {
	dir := t.TempDir()
	snap := filepath.Join(dir, "robots.jsonl.zst")

	_, err := execute(t, "run", "--steps", "5", "--dump", snap)
	require.NoError(t, err)
	info, err := os.Stat(snap)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	out, err := execute(t, "run", "--steps", "5", "--restore", snap, "--rate", "500")
	require.NoError(t, err)
	assert.Contains(t, out, "robots:        32")
	assert.Contains(t, out, "verify:        ok")
}
