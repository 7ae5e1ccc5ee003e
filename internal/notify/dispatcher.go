package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/metrics"
)

const (
	DefaultQueueSize = 256
	DefaultTimeout   = 10 * time.Second
)

// Dispatcher decouples alert producers from slow notification channels.
// Producers call Enqueue, which never blocks; Run delivers in FIFO order.
type Dispatcher struct {
	channels []Notifier
	queue    chan domain.AlertEvent
	timeout  time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewDispatcher builds a dispatcher over channels. m may be nil.
func NewDispatcher(log *zap.Logger, m *metrics.Metrics, queueSize int, timeout time.Duration, channels ...Notifier) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		channels: channels,
		queue:    make(chan domain.AlertEvent, queueSize),
		timeout:  timeout,
		log:      log,
		metrics:  m,
	}
}

// Channels lists the configured channel names.
func (d *Dispatcher) Channels() []string {
	out := make([]string, 0, len(d.channels))
	for _, c := range d.channels {
		out = append(out, c.Name())
	}
	return out
}

// Enqueue hands ev to the dispatcher. It reports false when the queue is
// full and the event was dropped.
func (d *Dispatcher) Enqueue(ev domain.AlertEvent) bool {
	select {
	case d.queue <- ev:
		return true
	default:
		d.log.Error("notify_queue_full",
			zap.String("event_id", ev.ID),
			zap.String("target", string(ev.TargetID)),
			zap.String("kind", string(ev.Kind)),
		)
		if d.metrics != nil {
			d.metrics.NotifyDropped.Inc()
		}
		return false
	}
}

// Run delivers queued events until ctx is done, then flushes what is
// already queued.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("notify_started", zap.Strings("channels", d.Channels()))
	for {
		select {
		case <-ctx.Done():
			d.flush()
			d.log.Info("notify_stopped")
			return nil
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		}
	}
}

func (d *Dispatcher) flush() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(context.Background(), ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev domain.AlertEvent) {
	if err := d.Notify(ctx, ev); err != nil {
		d.log.Warn("notify_error",
			zap.String("event_id", ev.ID),
			zap.String("target", string(ev.TargetID)),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
	}
}

// Notify sends ev to every channel concurrently, each bounded by the
// dispatcher timeout. One channel failing or panicking does not affect the
// others; their errors are combined.
func (d *Dispatcher) Notify(ctx context.Context, ev domain.AlertEvent) error {
	var (
		mu   sync.Mutex
		errs error
		wg   sync.WaitGroup
	)
	for _, c := range d.channels {
		wg.Add(1)
		go func(c Notifier) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()

			if err := send(cctx, c, ev); err != nil {
				if d.metrics != nil {
					d.metrics.NotifyFailures.WithLabelValues(c.Name()).Inc()
				}
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", c.Name(), err))
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()
	return errs
}

func send(ctx context.Context, c Notifier, ev domain.AlertEvent) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return c.Send(ctx, ev)
}
