package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/repo"
)

// LogChannel writes every event to the structured log. It is always on.
type LogChannel struct {
	Log *zap.Logger
}

func (LogChannel) Name() string { return "log" }

func (l LogChannel) Send(ctx context.Context, ev domain.AlertEvent) error {
	title, _ := Format(ev)
	fields := []zap.Field{
		zap.String("event_id", ev.ID),
		zap.String("target", string(ev.TargetID)),
		zap.String("kind", string(ev.Kind)),
		zap.String("status", string(ev.Result.Status)),
		zap.Int("consecutive", ev.Result.Consecutive),
		zap.String("title", title),
	}
	if ev.Kind == domain.AlertFire {
		l.Log.Warn("alert_fire", fields...)
	} else {
		l.Log.Info("alert_clear", fields...)
	}
	return nil
}

// StoreChannel appends events to the alert history of a structured store.
type StoreChannel struct {
	Store repo.AlertStore
}

func (StoreChannel) Name() string { return "store" }

func (s StoreChannel) Send(ctx context.Context, ev domain.AlertEvent) error {
	if s.Store == nil {
		return errors.New("no alert store")
	}
	return s.Store.Record(ctx, ev)
}
