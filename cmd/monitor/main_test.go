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
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidate_ListsTargets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
defaults:
  interval_s: 10
targets:
  - id: 127.0.0.1
  - id: https://example.com/health
    kind: http
    latency_threshold_ms: 300
`), 0o644))

	out, err := execute(t, "validate", "--targets", path)
	require.NoError(t, err)
	assert.Contains(t, out, "127.0.0.1")
	assert.Contains(t, out, "https://example.com/health")
	assert.Contains(t, out, "2 targets ok")
}

func TestValidate_RejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("targets:\n  - id: a\n    kind: carrier-pigeon\n"), 0o644))

	_, err := execute(t, "validate", "--targets", path)
	assert.ErrorContains(t, err, "unknown kind")
}

func TestValidate_EmptyTargetList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("targets: []\n"), 0o644))

	_, err := execute(t, "validate", "--targets", path)
	assert.Error(t, err)
}

func TestValidate_MissingFile(t *testing.T) {
	_, err := execute(t, "validate", "--targets", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
