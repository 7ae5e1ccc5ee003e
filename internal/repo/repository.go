package repo

import (
	"context"
	"time"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

// Ports (interfaces). The sink, the alert-log channel and the retention job
// depend on these, never on a concrete database.
type ResultStore interface {
	Append(ctx context.Context, r domain.Result) error
}

// AlertStore keeps the history of fire/clear events.
type AlertStore interface {
	Record(ctx context.Context, ev domain.AlertEvent) error
}

// Purger deletes structured rows older than a cut-off and reports how many
// were removed.
type Purger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Store is a structured backend: results, alert history and retention.
type Store interface {
	ResultStore
	AlertStore
	Purger
	Close() error
}

// AlertRecord is one row of the alert history.
type AlertRecord struct {
	ID          string
	TargetID    domain.TargetID
	Kind        domain.AlertKind
	Status      domain.Status
	Consecutive int
	At          time.Time
}

// AlertRecordOf flattens an event into its stored form.
func AlertRecordOf(ev domain.AlertEvent) AlertRecord {
	return AlertRecord{
		ID:          ev.ID,
		TargetID:    ev.TargetID,
		Kind:        ev.Kind,
		Status:      ev.Result.Status,
		Consecutive: ev.Result.Consecutive,
		At:          ev.At.UTC(),
	}
}
