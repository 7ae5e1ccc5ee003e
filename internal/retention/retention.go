// Package retention deletes structured rows older than the configured window
// on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/metrics"
	"github.com/hamed0406/pingmonitor/internal/repo"
)

const DefaultSchedule = "@daily"

type Job struct {
	Purger   repo.Purger
	Window   time.Duration
	Schedule string
	Timeout  time.Duration
	Log      *zap.Logger
	Metrics  *metrics.Metrics

	now func() time.Time
}

// New returns a job keeping days worth of rows. m may be nil.
func New(p repo.Purger, days int, schedule string, log *zap.Logger, m *metrics.Metrics) *Job {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Job{
		Purger:   p,
		Window:   time.Duration(days) * 24 * time.Hour,
		Schedule: schedule,
		Timeout:  time.Minute,
		Log:      log,
		Metrics:  m,
		now:      time.Now,
	}
}

// RunOnce deletes everything older than the window.
func (j *Job) RunOnce(ctx context.Context) (int64, error) {
	now := time.Now
	if j.now != nil {
		now = j.now
	}
	cutoff := now().Add(-j.Window)

	ctx, cancel := context.WithTimeout(ctx, j.Timeout)
	defer cancel()
	n, err := j.Purger.Purge(ctx, cutoff)
	if err != nil {
		j.Log.Warn("retention_purge_error", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0, err
	}
	if j.Metrics != nil {
		j.Metrics.RetentionPurge.Add(float64(n))
	}
	j.Log.Info("retention_purged", zap.Time("cutoff", cutoff), zap.Int64("rows", n))
	return n, nil
}

// Run schedules the purge and blocks until ctx is done. A bad schedule is
// reported before anything runs.
func (j *Job) Run(ctx context.Context) error {
	if j.Window <= 0 {
		j.Log.Info("retention_disabled")
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(j.Schedule, func() { _, _ = j.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("retention schedule %q: %w", j.Schedule, err)
	}
	c.Start()
	j.Log.Info("retention_started",
		zap.String("schedule", j.Schedule),
		zap.Duration("window", j.Window),
	)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// ValidSchedule reports whether spec parses as a cron schedule.
func ValidSchedule(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}
