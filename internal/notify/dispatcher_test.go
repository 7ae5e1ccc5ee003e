package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/metrics"
	"github.com/hamed0406/pingmonitor/internal/repo/memory"
)

type fakeChannel struct {
	name  string
	err   error
	panic bool
	block bool

	mu  sync.Mutex
	got []domain.AlertEvent
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(ctx context.Context, ev domain.AlertEvent) error {
	if f.panic {
		panic("channel exploded")
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	f.got = append(f.got, ev)
	f.mu.Unlock()
	return f.err
}

func (f *fakeChannel) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, ev := range f.got {
		out = append(out, ev.ID)
	}
	return out
}

func TestNotify_IsolatesChannelFailures(t *testing.T) {
	ok := &fakeChannel{name: "ok"}
	failing := &fakeChannel{name: "failing", err: errors.New("smtp: 421 try later")}
	panicky := &fakeChannel{name: "panicky", panic: true}
	slow := &fakeChannel{name: "slow", block: true}
	m := metrics.New()

	d := NewDispatcher(zap.NewNop(), m, 4, 50*time.Millisecond, ok, failing, panicky, slow)

	start := time.Now()
	err := d.Notify(context.Background(), fireEvent())
	assert.Less(t, time.Since(start), time.Second, "slow channel must be cut off by the timeout")

	require.Error(t, err)
	for _, name := range []string{"failing", "panicky", "slow"} {
		assert.Contains(t, err.Error(), name)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.NotifyFailures.WithLabelValues(name)))
	}
	assert.Equal(t, []string{"ev-1"}, ok.ids())
}

func TestEnqueue_NeverBlocks(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := metrics.New()
	d := NewDispatcher(zap.New(core), m, 2, time.Second, &fakeChannel{name: "ok"})

	assert.True(t, d.Enqueue(fireEvent()))
	assert.True(t, d.Enqueue(fireEvent()))

	done := make(chan bool)
	go func() { done <- d.Enqueue(fireEvent()) }()
	select {
	case accepted := <-done:
		assert.False(t, accepted)
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
	assert.Equal(t, 1, logs.FilterMessage("notify_queue_full").Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotifyDropped))
}

func TestRun_DeliversInOrder(t *testing.T) {
	ch := &fakeChannel{name: "rec"}
	d := NewDispatcher(zap.NewNop(), nil, 16, time.Second, ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	for _, id := range []string{"e1", "e2", "e3"} {
		ev := fireEvent()
		ev.ID = id
		require.True(t, d.Enqueue(ev))
	}
	require.Eventually(t, func() bool { return len(ch.ids()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"e1", "e2", "e3"}, ch.ids())

	cancel()
	require.NoError(t, <-done)
}

func TestRun_FlushesQueuedOnStop(t *testing.T) {
	ch := &fakeChannel{name: "rec"}
	d := NewDispatcher(zap.NewNop(), nil, 16, time.Second, ch)
	require.True(t, d.Enqueue(fireEvent()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))
	assert.Equal(t, []string{"ev-1"}, ch.ids())
}

func TestStoreChannel_RecordsHistory(t *testing.T) {
	mem := memory.New()
	require.NoError(t, StoreChannel{Store: mem}.Send(context.Background(), fireEvent()))

	hist := mem.Alerts()
	require.Len(t, hist, 1)
	assert.Equal(t, domain.AlertFire, hist[0].Kind)
	assert.Equal(t, 3, hist[0].Consecutive)

	assert.Error(t, StoreChannel{}.Send(context.Background(), fireEvent()))
}

func TestLogChannel_LevelsByKind(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	lc := LogChannel{Log: zap.New(core)}

	require.NoError(t, lc.Send(context.Background(), fireEvent()))
	clear := fireEvent()
	clear.Kind = domain.AlertClear
	require.NoError(t, lc.Send(context.Background(), clear))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "alert_fire", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
}
