package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/sink"
)

// scriptedMeasurer replays a latency script per target; nil entries are
// unreachable. Past the end of a script the last entry repeats.
type scriptedMeasurer struct {
	mu      sync.Mutex
	scripts map[domain.TargetID][]*float64
	calls   map[domain.TargetID]int
}

func ms(v float64) *float64 { return &v }

func newScripted() *scriptedMeasurer {
	return &scriptedMeasurer{
		scripts: make(map[domain.TargetID][]*float64),
		calls:   make(map[domain.TargetID]int),
	}
}

func (m *scriptedMeasurer) set(id domain.TargetID, script ...*float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[id] = script
}

func (m *scriptedMeasurer) Measure(ctx context.Context, t domain.Target) domain.Result {
	m.mu.Lock()
	n := m.calls[t.ID]
	m.calls[t.ID] = n + 1
	script := m.scripts[t.ID]
	m.mu.Unlock()

	var lat *float64
	switch {
	case len(script) == 0:
		lat = ms(1)
	case n < len(script):
		lat = script[n]
	default:
		lat = script[len(script)-1]
	}
	addr := "192.0.2.1"
	res := domain.Result{
		TargetID:  t.ID,
		Timestamp: time.Now().UTC(),
		Address:   &addr,
		Status:    domain.Classify(lat, t.LatencyThresholdMS),
	}
	if lat != nil {
		v := *lat
		res.LatencyMS = &v
	}
	return res
}

// recorder is a result store that keeps everything in memory.
type recorder struct {
	mu      sync.Mutex
	results []domain.Result
}

func (r *recorder) Append(ctx context.Context, res domain.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return nil
}

type storeFunc func(ctx context.Context, r domain.Result) error

func (f storeFunc) Append(ctx context.Context, r domain.Result) error { return f(ctx, r) }

// stalled honours its context but never completes a write in time.
var stalled = storeFunc(func(ctx context.Context, _ domain.Result) error {
	<-ctx.Done()
	return ctx.Err()
})

// sinkOf wraps stores into a Recorder with a short write timeout.
func sinkOf(stores ...*recorder) *sink.Recorder {
	var backends []sink.Backend
	for _, st := range stores {
		backends = append(backends, sink.Backend{Name: "test", Store: st})
	}
	return sink.NewRecorder(zap.NewNop(), nil, time.Second, backends...)
}

func (r *recorder) forTarget(id domain.TargetID) []domain.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Result
	for _, res := range r.results {
		if res.TargetID == id {
			out = append(out, res)
		}
	}
	return out
}

type alertLog struct {
	mu     sync.Mutex
	events []domain.AlertEvent
}

func (a *alertLog) Enqueue(ev domain.AlertEvent) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return true
}

func (a *alertLog) kinds(id domain.TargetID) []domain.AlertKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.AlertKind
	for _, ev := range a.events {
		if ev.TargetID == id {
			out = append(out, ev.Kind)
		}
	}
	return out
}

// memSource is an in-memory target set store.
type memSource struct {
	mu      sync.Mutex
	data    []byte
	err     error
	changed bool
}

func (s *memSource) put(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = []byte(data)
	s.err = nil
	s.changed = true
}

func (s *memSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *memSource) Read() ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, false, s.err
	}
	changed := s.changed
	s.changed = false
	return s.data, changed, nil
}
