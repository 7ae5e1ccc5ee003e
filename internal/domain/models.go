package domain

import "time"

type TargetID string

// ProbeKind selects how a target is measured.
type ProbeKind string

const (
	KindPing ProbeKind = "ping"
	KindHTTP ProbeKind = "http"
)

func (k ProbeKind) Valid() bool {
	return k == KindPing || k == KindHTTP
}

// Target is one monitored endpoint. Loops hold their own copy; a Target is
// never mutated after it has been handed to a loop.
type Target struct {
	ID                 TargetID      `json:"id"`
	Kind               ProbeKind     `json:"kind"`
	LatencyThresholdMS float64       `json:"latency_threshold_ms"`
	AlertThreshold     int           `json:"alert_count_threshold"`
	Interval           time.Duration `json:"interval"`
}

// AlertState is the per-target breach bookkeeping owned by a tracker.
type AlertState struct {
	Consecutive  int       `json:"consecutive"`
	Armed        bool      `json:"armed"`
	LastNotified time.Time `json:"last_notified,omitempty"`
}

type AlertKind string

const (
	AlertFire  AlertKind = "fire"
	AlertClear AlertKind = "clear"
)

// AlertEvent is handed from a tracker to the notification dispatcher.
type AlertEvent struct {
	ID       string    `json:"id"`
	TargetID TargetID  `json:"target_id"`
	Kind     AlertKind `json:"kind"`
	Result   Result    `json:"result"`
	At       time.Time `json:"at"`
}
