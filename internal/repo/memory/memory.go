package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Store keeps results and alert history in process memory. It is the
// structured backend when no database is configured.
type Store struct {
	mu      sync.RWMutex
	results []domain.Result
	alerts  []repo.AlertRecord
}

func New() *Store {
	return &Store{
		results: make([]domain.Result, 0, 128),
	}
}

func (m *Store) Append(ctx context.Context, r domain.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return nil
}

func (m *Store) Record(ctx context.Context, ev domain.AlertEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, repo.AlertRecordOf(ev))
	return nil
}

func (m *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	kept := m.results[:0]
	for _, r := range m.results {
		if r.Timestamp.Before(before) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.results = kept

	keptAlerts := m.alerts[:0]
	for _, a := range m.alerts {
		if a.At.Before(before) {
			n++
			continue
		}
		keptAlerts = append(keptAlerts, a)
	}
	m.alerts = keptAlerts
	return n, nil
}

func (m *Store) Close() error { return nil }

// Results returns a copy of the stored results for id, oldest first.
func (m *Store) Results(id domain.TargetID) []domain.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Result
	for _, r := range m.results {
		if r.TargetID == id {
			out = append(out, r)
		}
	}
	return out
}

// Alerts returns a copy of the alert history, oldest first.
func (m *Store) Alerts() []repo.AlertRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]repo.AlertRecord(nil), m.alerts...)
}
