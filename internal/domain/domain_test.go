package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func fp(v float64) *float64 { return &v }

func TestClassify(t *testing.T) {
	cases := []struct {
		lat  *float64
		want Status
	}{
		{fp(50), StatusSuccess},
		{fp(100), StatusSuccess},
		{fp(100.01), StatusHighLatency},
		{nil, StatusFailure},
	}
	for _, c := range cases {
		if got := Classify(c.lat, 100); got != c.want {
			t.Fatalf("Classify(%v)=%s want %s", c.lat, got, c.want)
		}
	}
}

func TestStatus_Breach(t *testing.T) {
	if StatusSuccess.Breach() {
		t.Fatal("success must not be a breach")
	}
	if !StatusHighLatency.Breach() || !StatusFailure.Breach() {
		t.Fatal("high latency and failure are both breaches")
	}
}

func TestResult_JSONKeepsNulls(t *testing.T) {
	r := Result{
		TargetID:  "a.example",
		Timestamp: time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC),
		Status:    StatusFailure,
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := m["address"]; !ok || v != nil {
		t.Fatalf("address should be present and null, got %v", m["address"])
	}
	if v, ok := m["latency_ms"]; !ok || v != nil {
		t.Fatalf("latency_ms should be present and null, got %v", m["latency_ms"])
	}
}
