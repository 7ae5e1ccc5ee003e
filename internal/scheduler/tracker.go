package scheduler

import (
	"sync"
	"time"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

// Tracker is the per-target alert state machine: Unarmed until the breach
// streak reaches the threshold, Armed until the next Success.
//
// Only the owning loop calls Observe; the mutex exists for State readers.
type Tracker struct {
	mu        sync.Mutex
	threshold int
	state     domain.AlertState
}

func NewTracker(threshold int) *Tracker {
	if threshold < 1 {
		threshold = 1
	}
	return &Tracker{threshold: threshold}
}

// Observe folds one classification into the state. It returns the breach
// count to stamp on the Result and, when the state flipped, the kind of
// event to raise.
func (t *Tracker) Observe(st domain.Status, at time.Time) (consecutive int, kind domain.AlertKind, fired bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st.Breach() {
		t.state.Consecutive++
		if !t.state.Armed && t.state.Consecutive >= t.threshold {
			t.state.Armed = true
			t.state.LastNotified = at
			return t.state.Consecutive, domain.AlertFire, true
		}
		return t.state.Consecutive, "", false
	}

	t.state.Consecutive = 0
	if t.state.Armed {
		t.state.Armed = false
		t.state.LastNotified = at
		return 0, domain.AlertClear, true
	}
	return 0, "", false
}

// Retarget changes the threshold without touching count or armed state.
// An armed tracker stays armed even when the new threshold is above the
// current streak; it clears on the next Success as usual.
func (t *Tracker) Retarget(threshold int) {
	if threshold < 1 {
		threshold = 1
	}
	t.mu.Lock()
	t.threshold = threshold
	t.mu.Unlock()
}

func (t *Tracker) State() domain.AlertState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) Threshold() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.threshold
}
