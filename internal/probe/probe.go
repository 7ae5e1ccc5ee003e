package probe

import "context"

// CheckResult is the outcome of one probe against an already resolved
// address.
//
// Fields:
//   - LatencyMS: round trip in milliseconds; only meaningful when Success.
//   - StatusCode: HTTP status when available; 0 for ICMP and transport errors.
type CheckResult struct {
	Success    bool    `json:"success"`
	LatencyMS  float64 `json:"latency_ms,omitempty"`
	Message    string  `json:"message"`
	StatusCode int     `json:"status_code,omitempty"`
}

// Checker probes one target. target is the configured identifier (a host or
// a URL), addr the address it resolved to for this tick. Implementations
// must honour ctx's deadline.
type Checker interface {
	Check(ctx context.Context, target, addr string) CheckResult
}
