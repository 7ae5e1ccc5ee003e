package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/metrics"
	"github.com/hamed0406/pingmonitor/internal/repo/memory"
)

type purgeFunc func(ctx context.Context, before time.Time) (int64, error)

func (f purgeFunc) Purge(ctx context.Context, before time.Time) (int64, error) { return f(ctx, before) }

func TestRunOnce_PurgesOlderThanWindow(t *testing.T) {
	now := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	mem := memory.New()
	ctx := context.Background()
	_ = mem.Append(ctx, domain.Result{TargetID: "a", Timestamp: now.Add(-40 * 24 * time.Hour)})
	_ = mem.Append(ctx, domain.Result{TargetID: "a", Timestamp: now.Add(-time.Hour)})

	m := metrics.New()
	j := New(mem, 30, "", zap.NewNop(), m)
	j.now = func() time.Time { return now }

	n, err := j.RunOnce(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Len(t, mem.Results("a"), 1)
	assert.Equal(t, DefaultSchedule, j.Schedule)
}

func TestRunOnce_PassesCutoffAndErrors(t *testing.T) {
	now := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	var got time.Time
	j := New(purgeFunc(func(ctx context.Context, before time.Time) (int64, error) {
		got = before
		return 0, errors.New("database is locked")
	}), 7, "@hourly", zap.NewNop(), nil)
	j.now = func() time.Time { return now }

	_, err := j.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, now.Add(-7*24*time.Hour), got)
}

func TestRun_BadScheduleAndDisabled(t *testing.T) {
	j := New(memory.New(), 30, "every tuesday-ish", zap.NewNop(), nil)
	assert.Error(t, j.Run(context.Background()))

	off := New(memory.New(), 0, "", zap.NewNop(), nil)
	assert.NoError(t, off.Run(context.Background()), "a zero window returns immediately")
}

func TestRun_StopsWithContext(t *testing.T) {
	j := New(memory.New(), 30, "@every 1h", zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestValidSchedule(t *testing.T) {
	assert.NoError(t, ValidSchedule("@daily"))
	assert.NoError(t, ValidSchedule("0 3 * * *"))
	assert.Error(t, ValidSchedule("nope"))
}
