package scheduler

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/metrics"
	"github.com/hamed0406/pingmonitor/internal/sink"
)

// DefaultQueueSize is the per-backend sink queue length of each target.
const DefaultQueueSize = 64

// TargetStatus is a point-in-time copy of one live target.
type TargetStatus struct {
	Target domain.Target     `json:"target"`
	Last   *domain.Result    `json:"last_result"`
	Alert  domain.AlertState `json:"alert_state"`
}

type handle struct {
	target  domain.Target
	tracker *Tracker
	stream  *sink.Stream // shared with the handle this one replaced
	cancel  context.CancelFunc
	done    chan struct{} // closed once the loop goroutine has exited

	mu   sync.Mutex
	last *domain.Result
}

func (h *handle) setLast(r domain.Result) {
	h.mu.Lock()
	h.last = &r
	h.mu.Unlock()
}

func (h *handle) lastResult() *domain.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return nil
	}
	r := *h.last
	return &r
}

func (h *handle) status() TargetStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := TargetStatus{Target: h.target, Alert: h.tracker.State()}
	if h.last != nil {
		r := *h.last
		st.Last = &r
	}
	return st
}

// Supervisor owns the live measurement loops, at most one per target id.
type Supervisor struct {
	Measurer  Measurer
	Recorder  Recorder
	Alerts    Alerter
	Log       *zap.Logger
	Metrics   *metrics.Metrics
	QueueSize int

	mu    sync.Mutex
	loops map[domain.TargetID]*handle

	// draining counts streams of stopped loops still writing queued Results.
	draining sync.WaitGroup
}

func NewSupervisor(m Measurer, rec Recorder, alerts Alerter, log *zap.Logger, met *metrics.Metrics) *Supervisor {
	return &Supervisor{
		Measurer:  m,
		Recorder:  rec,
		Alerts:    alerts,
		Log:       log,
		Metrics:   met,
		QueueSize: DefaultQueueSize,
		loops:     make(map[domain.TargetID]*handle),
	}
}

// Apply carries out d: removed loops are stopped, changed loops are
// restarted with their alert state and sink stream preserved, added loops
// are started. New loops run under ctx. Apply never waits for a loop or a
// sink: stopped loops finish and drain in the background.
func (s *Supervisor) Apply(ctx context.Context, d Diff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loops == nil {
		s.loops = make(map[domain.TargetID]*handle)
	}

	for _, id := range d.Removed {
		h, ok := s.loops[id]
		if !ok {
			continue
		}
		h.cancel()
		s.retire(h)
		delete(s.loops, id)
		if s.Metrics != nil {
			s.Metrics.Forget(string(id))
			s.Metrics.Reconciles.WithLabelValues("removed").Inc()
		}
		s.Log.Info("loop_stopped", zap.String("target", string(id)))
	}

	for _, t := range d.Changed {
		h, ok := s.loops[t.ID]
		if !ok {
			s.start(ctx, t, NewTracker(t.AlertThreshold), nil)
			continue
		}
		h.cancel()
		h.tracker.Retarget(t.AlertThreshold)
		s.start(ctx, t, h.tracker, h)
		if s.Metrics != nil {
			s.Metrics.Reconciles.WithLabelValues("changed").Inc()
		}
		s.Log.Info("loop_restarted",
			zap.String("target", string(t.ID)),
			zap.Duration("interval", t.Interval),
			zap.Float64("latency_threshold_ms", t.LatencyThresholdMS),
			zap.Int("alert_threshold", t.AlertThreshold),
		)
	}

	for _, t := range d.Added {
		if h, ok := s.loops[t.ID]; ok {
			// treat a duplicate add as a fresh start
			h.cancel()
			s.retire(h)
		}
		s.start(ctx, t, NewTracker(t.AlertThreshold), nil)
		if s.Metrics != nil {
			s.Metrics.Reconciles.WithLabelValues("added").Inc()
		}
		s.Log.Info("loop_started",
			zap.String("target", string(t.ID)),
			zap.String("kind", string(t.Kind)),
			zap.Duration("interval", t.Interval),
		)
	}

	if s.Metrics != nil {
		s.Metrics.LiveTargets.Set(float64(len(s.loops)))
	}
}

// retire closes h's stream once its loop has exited. The caller must have
// cancelled h already.
func (s *Supervisor) retire(h *handle) {
	s.draining.Add(1)
	go func() {
		defer s.draining.Done()
		<-h.done
		h.stream.Close()
	}()
}

// start must be called with s.mu held. When prev is set the new loop takes
// over its stream and waits for it to exit first, so one target never has
// two loops ticking and its Results stay in order.
func (s *Supervisor) start(parent context.Context, t domain.Target, tr *Tracker, prev *handle) {
	ctx, cancel := context.WithCancel(parent)
	h := &handle{
		target:  t,
		tracker: tr,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	if prev != nil {
		h.stream = prev.stream
		h.last = prev.lastResult()
	} else {
		h.stream = s.Recorder.Open(t.ID, s.QueueSize)
	}
	l := &loop{
		target:   t,
		measurer: s.Measurer,
		tracker:  tr,
		alerts:   s.Alerts,
		log:      s.Log,
		metrics:  s.Metrics,
		stream:   h.stream,
		onEmit:   h.setLast,
	}

	go func() {
		defer close(h.done)
		if prev != nil {
			<-prev.done
			if r := prev.lastResult(); r != nil {
				h.setLast(*r)
			}
		}
		l.run(ctx)
	}()

	s.loops[t.ID] = h
}

// Status returns a copy of every live target, sorted by id.
func (s *Supervisor) Status() []TargetStatus {
	s.mu.Lock()
	hs := make([]*handle, 0, len(s.loops))
	for _, h := range s.loops {
		hs = append(hs, h)
	}
	s.mu.Unlock()

	out := make([]TargetStatus, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target.ID < out[j].Target.ID })
	return out
}

// Lookup returns the status of one live target.
func (s *Supervisor) Lookup(id domain.TargetID) (TargetStatus, bool) {
	s.mu.Lock()
	h, ok := s.loops[id]
	s.mu.Unlock()
	if !ok {
		return TargetStatus{}, false
	}
	return h.status(), true
}

// Live reports the ids with a running loop.
func (s *Supervisor) Live() []domain.TargetID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]domain.TargetID, 0, len(s.loops))
	for id := range s.loops {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Stop cancels every loop and waits until their queued Results have been
// written, including those of loops stopped earlier.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	for id, h := range s.loops {
		h.cancel()
		s.retire(h)
		delete(s.loops, id)
	}
	if s.Metrics != nil {
		s.Metrics.LiveTargets.Set(0)
	}
	s.mu.Unlock()

	s.draining.Wait()
	s.Log.Info("supervisor_stopped")
}
