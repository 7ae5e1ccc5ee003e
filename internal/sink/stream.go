package sink

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

// DefaultStreamQueue is the per-backend queue length of a Stream.
const DefaultStreamQueue = 64

// overrun is how long a lane waits past the write deadline for a backend
// that honours its context to return.
const overrun = 50 * time.Millisecond

// Stream is the ordered write path of one target. Each backend has its own
// FIFO queue drained by its own goroutine, so a slow backend only backs up
// its own queue and the others keep pace with the producer.
type Stream struct {
	rc     *Recorder
	target domain.TargetID
	lanes  []*lane

	wg   sync.WaitGroup
	once sync.Once
}

type lane struct {
	idx   int
	queue chan *tally
	// stuck holds the pending answer of a write that outlived its deadline;
	// the lane starts no other write until it arrives.
	stuck chan error
}

// tally collects the backends' answers for one Result. The Result is scored
// when the last one arrives.
type tally struct {
	r domain.Result

	mu       sync.Mutex
	pending  int
	failures int
	errs     error
}

// Open starts a Stream for target with queueSize slots per backend.
func (rc *Recorder) Open(target domain.TargetID, queueSize int) *Stream {
	if queueSize <= 0 {
		queueSize = DefaultStreamQueue
	}
	s := &Stream{rc: rc, target: target}
	for i := range rc.backends {
		ln := &lane{idx: i, queue: make(chan *tally, queueSize)}
		s.lanes = append(s.lanes, ln)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.drain(ln)
		}()
	}
	return s
}

// Submit queues r on every backend without blocking. A backend whose queue
// is full misses r, which counts as a failure of that backend only.
// Submit must not be called after Close.
func (s *Stream) Submit(r domain.Result) {
	if len(s.lanes) == 0 {
		return
	}
	t := &tally{r: r, pending: len(s.lanes)}
	for _, ln := range s.lanes {
		select {
		case ln.queue <- t:
		default:
			if m := s.rc.metrics; m != nil {
				m.SinkDropped.Inc()
			}
			s.rc.log.Warn("sink_queue_full",
				zap.String("target", string(s.target)),
				zap.String("backend", s.rc.backends[ln.idx].Name),
				zap.Time("timestamp", r.Timestamp),
			)
			s.report(t, ln.idx, ErrQueueFull)
		}
	}
}

// Close stops intake and waits until every queued Result has been tried on
// its backend. A write stuck past its deadline is not waited for.
func (s *Stream) Close() {
	s.once.Do(func() {
		for _, ln := range s.lanes {
			close(ln.queue)
		}
	})
	s.wg.Wait()
}

func (s *Stream) drain(ln *lane) {
	for t := range ln.queue {
		s.report(t, ln.idx, s.write(ln, t.r))
	}
}

// write runs one write under the recorder's timeout. The write itself runs
// in a goroutine so a backend that ignores its context cannot hold the lane
// past the deadline; at most one such write is outstanding per lane.
func (s *Stream) write(ln *lane, r domain.Result) error {
	if ln.stuck != nil {
		select {
		case <-ln.stuck:
			ln.stuck = nil
		default:
			return ErrBusy
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.rc.timeout)
	errc := make(chan error, 1)
	go func() {
		defer cancel()
		errc <- s.rc.write(ctx, s.rc.backends[ln.idx], r)
	}()

	timer := time.NewTimer(s.rc.timeout + overrun)
	defer timer.Stop()
	select {
	case err := <-errc:
		return err
	case <-timer.C:
		ln.stuck = errc
		return context.DeadlineExceeded
	}
}

func (s *Stream) report(t *tally, idx int, err error) {
	t.mu.Lock()
	if err != nil {
		t.failures++
		t.errs = multierr.Append(t.errs, s.rc.backendError(idx, err))
	}
	t.pending--
	last := t.pending == 0
	failures, errs := t.failures, t.errs
	t.mu.Unlock()

	if last {
		s.rc.score(failures, errs, t.r)
	}
}
