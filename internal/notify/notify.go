package notify

import (
	"context"
	"fmt"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

// Notifier is one notification channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, ev domain.AlertEvent) error
}

// Format renders the human readable title and body of ev, worded after the
// mails operators already filter on ("<target> - Ping Failure Warning").
func Format(ev domain.AlertEvent) (title, text string) {
	id := string(ev.TargetID)
	r := ev.Result

	latency := "n/a"
	if r.LatencyMS != nil {
		latency = fmt.Sprintf("%.2fms", *r.LatencyMS)
	}
	addr := "unresolved"
	if r.Address != nil {
		addr = *r.Address
	}

	switch {
	case ev.Kind == domain.AlertClear:
		title = id + " - Recovered"
		text = fmt.Sprintf("%s is reachable again, latency %s.", id, latency)
	case r.Status == domain.StatusHighLatency:
		title = id + " - High Latency Warning"
		text = fmt.Sprintf("Latency reached %s on %d consecutive checks.", latency, r.Consecutive)
	default:
		title = id + " - Ping Failure Warning"
		text = fmt.Sprintf("Could not reach %s after %d attempts.", id, r.Consecutive)
	}

	text += fmt.Sprintf("\nAddress: %s\nStatus: %s", addr, r.Status)
	if r.Reason != "" {
		text += "\nReason: " + r.Reason
	}
	text += "\nChecked: " + ev.At.Format("2006-01-02 15:04:05 MST")
	return title, text
}
