package scheduler

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/config"
	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/metrics"
)

// Diff is the set of start/stop actions one reconciliation produced. Each
// slice is sorted by target id.
type Diff struct {
	Added   []domain.Target
	Removed []domain.TargetID
	Changed []domain.Target
}

func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Reconciler compares the target set store with the last accepted snapshot.
// It is not safe for concurrent use; the engine is its only caller.
type Reconciler struct {
	src     config.Source
	log     *zap.Logger
	metrics *metrics.Metrics

	current *config.Snapshot
	readErr string
}

// NewReconciler returns a Reconciler reading from src. m may be nil.
func NewReconciler(src config.Source, log *zap.Logger, m *metrics.Metrics) *Reconciler {
	return &Reconciler{src: src, log: log, metrics: m}
}

// Init performs the first read. Unlike Poll it fails: a missing, malformed
// or empty target set at startup is fatal.
func (r *Reconciler) Init() (Diff, error) {
	data, _, err := r.src.Read()
	if err != nil {
		return Diff{}, err
	}
	snap, err := config.ParseTargets(data)
	if err != nil {
		return Diff{}, err
	}
	if len(snap.Targets) == 0 {
		return Diff{}, config.ErrNoTargets
	}
	d := diff(nil, snap)
	r.current = snap
	r.log.Info("targets_loaded",
		zap.Int("count", len(snap.Targets)),
		zap.String("hash", snap.Hash),
	)
	return d, nil
}

// Poll reads the store and returns what changed since the last accepted
// snapshot. An unreadable or invalid document is logged once and yields an
// empty Diff; the previous snapshot stays in effect.
func (r *Reconciler) Poll() Diff {
	data, changed, err := r.src.Read()
	if err != nil {
		if msg := err.Error(); msg != r.readErr {
			r.readErr = msg
			r.reject(err)
		}
		return Diff{}
	}
	r.readErr = ""
	if !changed {
		return Diff{}
	}

	snap, err := config.ParseTargets(data)
	if err != nil {
		// the source will report this content as unchanged until it is
		// edited again, so this warns once per bad edit
		r.reject(err)
		return Diff{}
	}
	if r.current != nil && snap.Hash == r.current.Hash {
		return Diff{}
	}

	d := diff(r.current, snap)
	r.current = snap
	if !d.Empty() {
		r.log.Info("targets_reconciled",
			zap.Int("added", len(d.Added)),
			zap.Int("removed", len(d.Removed)),
			zap.Int("changed", len(d.Changed)),
			zap.String("hash", snap.Hash),
		)
	}
	return d
}

// Snapshot returns the last accepted target set, or nil before Init.
func (r *Reconciler) Snapshot() *config.Snapshot {
	return r.current
}

func (r *Reconciler) reject(err error) {
	r.log.Warn("targets_rejected", zap.Error(err))
	if r.metrics != nil {
		r.metrics.ConfigErrors.Inc()
	}
}

// diff computes new minus old (Added), old minus new (Removed) and the ids
// present in both whose definition differs in any field (Changed).
func diff(old, cur *config.Snapshot) Diff {
	var d Diff
	var before map[domain.TargetID]domain.Target
	if old != nil {
		before = old.Targets
	}
	for _, id := range cur.IDs() {
		t := cur.Targets[id]
		prev, ok := before[id]
		switch {
		case !ok:
			d.Added = append(d.Added, t)
		case prev != t:
			d.Changed = append(d.Changed, t)
		}
	}
	for id := range before {
		if _, ok := cur.Targets[id]; !ok {
			d.Removed = append(d.Removed, id)
		}
	}
	sort.Slice(d.Removed, func(i, j int) bool { return d.Removed[i] < d.Removed[j] })
	return d
}

func (d Diff) String() string {
	return fmt.Sprintf("+%d -%d ~%d", len(d.Added), len(d.Removed), len(d.Changed))
}
