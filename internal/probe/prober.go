package probe

import (
	"context"
	"time"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

// Prober performs the resolve-then-probe step of one tick.
type Prober struct {
	Resolver Resolver
	Checkers map[domain.ProbeKind]Checker
	// TimeoutCap bounds a tick; the effective timeout is the smaller of the
	// cap and the target's interval so a tick never runs into the next one.
	TimeoutCap time.Duration

	now func() time.Time
}

func NewProber(resolver Resolver, timeoutCap time.Duration, privilegedPing bool) *Prober {
	return &Prober{
		Resolver: resolver,
		Checkers: map[domain.ProbeKind]Checker{
			domain.KindPing: NewPinger(privilegedPing),
			domain.KindHTTP: NewHTTPChecker(),
		},
		TimeoutCap: timeoutCap,
		now:        time.Now,
	}
}

// Timeout returns the bound applied to one tick of t.
func (p *Prober) Timeout(t domain.Target) time.Duration {
	d := p.TimeoutCap
	if t.Interval > 0 && (d <= 0 || t.Interval < d) {
		d = t.Interval
	}
	return d
}

// Measure resolves and probes t once and classifies the outcome. The
// returned Result has no consecutive count yet; the caller's tracker owns
// that. Measure never fails: every problem becomes a Failure result.
func (p *Prober) Measure(ctx context.Context, t domain.Target) domain.Result {
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	res := domain.Result{TargetID: t.ID, Timestamp: now().UTC()}

	if d := p.Timeout(t); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	addr, err := p.Resolver.Resolve(ctx, HostOf(t))
	if err != nil {
		res.Status = domain.StatusFailure
		res.Reason = "dns=" + ClassOf(err)
		return res
	}
	res.Address = &addr

	chk, ok := p.Checkers[t.Kind]
	if !ok {
		res.Status = domain.StatusFailure
		res.Reason = "no checker for kind " + string(t.Kind)
		return res
	}
	out := chk.Check(ctx, string(t.ID), addr)
	if out.Success {
		lat := out.LatencyMS
		res.LatencyMS = &lat
	}
	res.Status = domain.Classify(res.LatencyMS, t.LatencyThresholdMS)
	res.Reason = out.Message
	return res
}
