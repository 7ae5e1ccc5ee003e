package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

func fireEvent() domain.AlertEvent {
	return domain.AlertEvent{
		ID:       "ev-1",
		TargetID: "a.example",
		Kind:     domain.AlertFire,
		At:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Result: domain.Result{
			TargetID:    "a.example",
			Status:      domain.StatusFailure,
			Consecutive: 3,
			Reason:      "dns=NXDOMAIN",
		},
	}
}

func TestFormat(t *testing.T) {
	title, text := Format(fireEvent())
	if title != "a.example - Ping Failure Warning" {
		t.Fatalf("title = %q", title)
	}
	for _, want := range []string{"after 3 attempts", "Address: unresolved", "Reason: dns=NXDOMAIN"} {
		if !strings.Contains(text, want) {
			t.Fatalf("text %q missing %q", text, want)
		}
	}

	lat := 150.0
	addr := "192.0.2.1"
	ev := fireEvent()
	ev.Result.Status = domain.StatusHighLatency
	ev.Result.LatencyMS = &lat
	ev.Result.Address = &addr
	title, text = Format(ev)
	if title != "a.example - High Latency Warning" || !strings.Contains(text, "Latency reached 150.00ms") {
		t.Fatalf("high latency: %q / %q", title, text)
	}

	ev.Kind = domain.AlertClear
	ev.Result.Status = domain.StatusSuccess
	if title, _ = Format(ev); title != "a.example - Recovered" {
		t.Fatalf("clear title = %q", title)
	}
}
