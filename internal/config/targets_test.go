package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

const validTargets = `
defaults:
  latency_threshold_ms: 150
  alert_count_threshold: 2
  interval_s: 10
targets:
  - id: a.example
    latency_threshold_ms: 100
    alert_count_threshold: 3
    interval_s: 1
  - id: 10.0.0.1
  - id: https://status.example.com/health
    kind: http
`

func TestParseTargets_AppliesDefaults(t *testing.T) {
	snap, err := ParseTargets([]byte(validTargets))
	require.NoError(t, err)
	require.Len(t, snap.Targets, 3)

	a := snap.Targets["a.example"]
	assert.Equal(t, domain.KindPing, a.Kind)
	assert.Equal(t, 100.0, a.LatencyThresholdMS)
	assert.Equal(t, 3, a.AlertThreshold)
	assert.Equal(t, time.Second, a.Interval)

	ip := snap.Targets["10.0.0.1"]
	assert.Equal(t, 150.0, ip.LatencyThresholdMS)
	assert.Equal(t, 2, ip.AlertThreshold)
	assert.Equal(t, 10*time.Second, ip.Interval)

	web := snap.Targets["https://status.example.com/health"]
	assert.Equal(t, domain.KindHTTP, web.Kind)

	assert.Equal(t, []domain.TargetID{"10.0.0.1", "a.example", "https://status.example.com/health"}, snap.IDs())
	assert.NotEmpty(t, snap.Hash)
}

func TestParseTargets_BuiltinDefaults(t *testing.T) {
	snap, err := ParseTargets([]byte("targets:\n  - id: b.example\n"))
	require.NoError(t, err)
	b := snap.Targets["b.example"]
	assert.Equal(t, float64(DefaultLatencyThresholdMS), b.LatencyThresholdMS)
	assert.Equal(t, DefaultAlertThreshold, b.AlertThreshold)
	assert.Equal(t, DefaultIntervalSeconds*time.Second, b.Interval)
}

func TestParseTargets_RejectsWholeDocument(t *testing.T) {
	cases := map[string]string{
		"empty":           "   \n",
		"syntax":          "targets: [",
		"unknown field":   "targets:\n  - id: a\n    colour: red\n",
		"missing id":      "targets:\n  - kind: ping\n",
		"duplicate":       "targets:\n  - id: a\n  - id: a\n",
		"bad kind":        "targets:\n  - id: a\n    kind: smoke\n",
		"bad threshold":   "targets:\n  - id: a\n    alert_count_threshold: -1\n",
		"bad interval":    "targets:\n  - id: a\n    interval_s: -5\n",
		"http not url":    "targets:\n  - id: example.com\n    kind: http\n",
		"ping with url":   "targets:\n  - id: https://example.com\n",
		"ping with path":  "targets:\n  - id: example.com/health\n",
		"ping with space": "targets:\n  - id: \"example .com\"\n",
		"one bad of two":  "targets:\n  - id: good.example\n  - id: bad\n    kind: nope\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			snap, err := ParseTargets([]byte(doc))
			assert.Error(t, err)
			assert.Nil(t, snap)
		})
	}
}

func TestFileSource_DetectsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validTargets), 0o600))

	src := NewFileSource(path)
	data, changed, err := src.Read()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, validTargets, string(data))

	_, changed, err = src.Read()
	require.NoError(t, err)
	assert.False(t, changed, "second read of an untouched file")

	// same content, new mtime: still unchanged
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))
	_, changed, err = src.Read()
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, os.WriteFile(path, []byte("targets:\n  - id: c.example\n"), 0o600))
	_, changed, err = src.Read()
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestFileSource_MissingFile(t *testing.T) {
	_, _, err := NewFileSource(filepath.Join(t.TempDir(), "nope.yaml")).Read()
	assert.Error(t, err)
}

func TestSaveTargets_RoundTripAndValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	f := &TargetsFile{Targets: []TargetRecord{{ID: "a.example", IntervalSeconds: 5}}}
	require.NoError(t, SaveTargets(path, f))

	got, err := LoadTargetsFile(path)
	require.NoError(t, err)
	require.Len(t, got.Targets, 1)
	assert.Equal(t, "a.example", got.Targets[0].ID)

	bad := &TargetsFile{Targets: []TargetRecord{{ID: "x", Kind: "smoke"}}}
	assert.Error(t, SaveTargets(path, bad))

	// file untouched after a rejected save
	got, err = LoadTargetsFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a.example", got.Targets[0].ID)
}

func TestWatch_WakesOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validTargets), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wake := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, zap.NewNop(), path, wake) }()

	// give the watcher a moment to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("targets:\n  - id: d.example\n"), 0o600))

	select {
	case <-wake:
	case <-time.After(3 * time.Second):
		t.Fatal("no wake-up after write")
	}
	cancel()
	require.NoError(t, <-done)
}
