// Package sink writes every Result to all configured backends at once and
// scores the combined outcome.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/metrics"
	"github.com/hamed0406/pingmonitor/internal/repo"
)

type Outcome int

const (
	OK Outcome = iota
	Partial
	Failed
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Partial:
		return "partial"
	default:
		return "failed"
	}
}

// MaxInFlight bounds the writes Record keeps open against one backend. A
// backend that ignores its deadline holds its slots until it returns.
const MaxInFlight = 16

var (
	// ErrBusy marks a write that was not attempted because the backend was
	// still stuck in earlier ones.
	ErrBusy = errors.New("backend busy")
	// ErrQueueFull marks a Result a Stream could not queue for a backend.
	ErrQueueFull = errors.New("backend queue full")
)

// Backend is one named destination.
type Backend struct {
	Name  string
	Store repo.ResultStore
}

type Recorder struct {
	backends []Backend
	slots    []chan struct{}
	timeout  time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewRecorder returns a Recorder writing to backends, each bounded by
// timeout. m may be nil.
func NewRecorder(log *zap.Logger, m *metrics.Metrics, timeout time.Duration, backends ...Backend) *Recorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	slots := make([]chan struct{}, len(backends))
	for i := range slots {
		slots[i] = make(chan struct{}, MaxInFlight)
	}
	return &Recorder{backends: backends, slots: slots, timeout: timeout, log: log, metrics: m}
}

type backendErr struct {
	idx int
	err error
}

// Record writes r to every backend concurrently and waits at most the
// configured timeout. A backend that has not answered by then counts as
// failed; its goroutine finishes on its own once its context expires, and
// no more than MaxInFlight of them exist per backend. Nothing is retried.
func (rc *Recorder) Record(ctx context.Context, r domain.Result) Outcome {
	if len(rc.backends) == 0 {
		return OK
	}

	done := make(chan backendErr, len(rc.backends))
	for i, b := range rc.backends {
		select {
		case rc.slots[i] <- struct{}{}:
		default:
			done <- backendErr{idx: i, err: ErrBusy}
			continue
		}
		go func(i int, b Backend) {
			defer func() { <-rc.slots[i] }()
			bctx, cancel := context.WithTimeout(ctx, rc.timeout)
			defer cancel()
			done <- backendErr{idx: i, err: rc.write(bctx, b, r)}
		}(i, b)
	}

	timer := time.NewTimer(rc.timeout)
	defer timer.Stop()

	answered := make([]bool, len(rc.backends))
	var (
		errs     error
		failures int
	)
	fail := func(i int, err error) {
		failures++
		errs = multierr.Append(errs, rc.backendError(i, err))
	}

wait:
	for pending := len(rc.backends); pending > 0; pending-- {
		select {
		case be := <-done:
			answered[be.idx] = true
			if be.err != nil {
				fail(be.idx, be.err)
			}
		case <-timer.C:
			break wait
		}
	}
	for i, ok := range answered {
		if !ok {
			fail(i, context.DeadlineExceeded)
		}
	}

	return rc.score(failures, errs, r)
}

func (rc *Recorder) backendError(i int, err error) error {
	name := rc.backends[i].Name
	if rc.metrics != nil {
		rc.metrics.BackendErrors.WithLabelValues(name).Inc()
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (rc *Recorder) write(ctx context.Context, b Backend, r domain.Result) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return b.Store.Append(ctx, r)
}

func (rc *Recorder) score(failures int, errs error, r domain.Result) Outcome {
	out := OK
	switch {
	case failures == 0:
	case failures >= len(rc.backends):
		out = Failed
	default:
		out = Partial
	}
	if rc.metrics != nil {
		rc.metrics.SinkOutcomes.WithLabelValues(out.String()).Inc()
	}

	fields := []zap.Field{
		zap.String("target", string(r.TargetID)),
		zap.Time("timestamp", r.Timestamp),
		zap.Int("failed_backends", failures),
		zap.Error(errs),
	}
	switch out {
	case Partial:
		rc.log.Warn("sink_partial", fields...)
	case Failed:
		rc.log.Error("sink_failed", fields...)
	}
	return out
}
