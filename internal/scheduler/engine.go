package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultReconcileInterval is how often the target set store is polled.
const DefaultReconcileInterval = 2 * time.Second

// Engine ties the reconciler to the supervisor.
type Engine struct {
	Reconciler *Reconciler
	Supervisor *Supervisor
	Interval   time.Duration
	// Wake, when set, triggers a reconciliation ahead of the ticker
	// (file watcher).
	Wake <-chan struct{}
	Log  *zap.Logger
}

func NewEngine(r *Reconciler, s *Supervisor, interval time.Duration, wake <-chan struct{}, log *zap.Logger) *Engine {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	return &Engine{Reconciler: r, Supervisor: s, Interval: interval, Wake: wake, Log: log}
}

// Run loads the initial target set, starts its loops, then reconciles until
// ctx is done. It fails only when the initial load fails. On return every
// loop has stopped and drained.
func (e *Engine) Run(ctx context.Context) error {
	initial, err := e.Reconciler.Init()
	if err != nil {
		return err
	}
	e.Supervisor.Apply(ctx, initial)
	defer e.Supervisor.Stop()

	e.Log.Info("engine_started",
		zap.Int("targets", len(initial.Added)),
		zap.Duration("reconcile_interval", e.Interval),
	)

	t := time.NewTicker(e.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			e.Log.Info("engine_stopped")
			return nil
		case <-t.C:
		case <-e.Wake:
		}
		if d := e.Reconciler.Poll(); !d.Empty() {
			e.Log.Debug("reconcile_apply", zap.Stringer("diff", d))
			e.Supervisor.Apply(ctx, d)
		}
	}
}
