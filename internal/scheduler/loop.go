package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/metrics"
	"github.com/hamed0406/pingmonitor/internal/sink"
)

// Measurer performs one resolve-and-probe of a target.
type Measurer interface {
	Measure(ctx context.Context, t domain.Target) domain.Result
}

// Recorder opens the ordered write path of one target.
type Recorder interface {
	Open(id domain.TargetID, queueSize int) *sink.Stream
}

// Alerter accepts alert events without blocking.
type Alerter interface {
	Enqueue(ev domain.AlertEvent) bool
}

// loop measures one target until its context is cancelled. Results go to
// the target's sink stream, which never blocks the next tick and keeps
// emission order per backend.
type loop struct {
	target   domain.Target
	measurer Measurer
	tracker  *Tracker
	alerts   Alerter
	log      *zap.Logger
	metrics  *metrics.Metrics

	stream *sink.Stream
	onEmit func(domain.Result)
}

func (l *loop) run(ctx context.Context) {
	l.tick(ctx)

	t := time.NewTicker(l.target.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.tick(ctx)
		}
	}
}

func (l *loop) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	res := l.measurer.Measure(ctx, l.target)
	if ctx.Err() != nil {
		// aborted by stop or removal, not by the probe deadline
		return
	}

	consecutive, kind, fired := l.tracker.Observe(res.Status, res.Timestamp)
	res.Consecutive = consecutive
	if l.onEmit != nil {
		l.onEmit(res)
	}

	if l.metrics != nil {
		l.metrics.Ticks.WithLabelValues(string(res.TargetID), string(res.Status)).Inc()
		if res.LatencyMS != nil {
			l.metrics.Latency.WithLabelValues(string(res.TargetID)).Observe(*res.LatencyMS)
		}
	}
	l.log.Debug("probe_result",
		zap.String("target", string(res.TargetID)),
		zap.String("status", string(res.Status)),
		zap.Int("consecutive", res.Consecutive),
		zap.String("reason", res.Reason),
	)

	if fired {
		l.raise(kind, res)
	}

	if l.stream != nil {
		l.stream.Submit(res)
	}
}

func (l *loop) raise(kind domain.AlertKind, res domain.Result) {
	ev := domain.AlertEvent{
		ID:       uuid.NewString(),
		TargetID: res.TargetID,
		Kind:     kind,
		Result:   res,
		At:       res.Timestamp,
	}
	if l.metrics != nil {
		l.metrics.Alerts.WithLabelValues(string(kind)).Inc()
	}
	l.log.Info("alert_raised",
		zap.String("target", string(res.TargetID)),
		zap.String("kind", string(kind)),
		zap.String("status", string(res.Status)),
		zap.Int("consecutive", res.Consecutive),
	)
	if l.alerts != nil {
		l.alerts.Enqueue(ev)
	}
}
