package domain

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusSuccess     Status = "Success"
	StatusHighLatency Status = "HighLatency"
	StatusFailure     Status = "Failure"
)

// Breach reports whether s counts toward an alert streak.
func (s Status) Breach() bool { return s != StatusSuccess }

// Classify maps a probe outcome onto a Status. A nil latency means the
// target did not answer.
func Classify(latencyMS *float64, thresholdMS float64) Status {
	switch {
	case latencyMS == nil:
		return StatusFailure
	case *latencyMS > thresholdMS:
		return StatusHighLatency
	default:
		return StatusSuccess
	}
}

// Result is a single measurement. Address and LatencyMS are nil when
// resolution or the probe failed.
type Result struct {
	TargetID    TargetID  `json:"target_id"`
	Timestamp   time.Time `json:"timestamp"`
	Address     *string   `json:"address"`
	Status      Status    `json:"status"`
	LatencyMS   *float64  `json:"latency_ms"`
	Consecutive int       `json:"consecutive_count"`
	Reason      string    `json:"reason,omitempty"`
}

func (r Result) String() string {
	lat := "n/a"
	if r.LatencyMS != nil {
		lat = fmt.Sprintf("%.2f ms", *r.LatencyMS)
	}
	return fmt.Sprintf("%s %s latency=%s count=%d", r.TargetID, r.Status, lat, r.Consecutive)
}
