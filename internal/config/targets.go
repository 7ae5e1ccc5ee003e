package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

// Defaults applied to target records that leave a field out.
const (
	DefaultLatencyThresholdMS = 100
	DefaultAlertThreshold     = 3
	DefaultIntervalSeconds    = 30
)

var (
	ErrEmptyDocument = errors.New("targets: empty document")
	ErrNoTargets     = errors.New("targets: no targets configured")
)

// TargetsFile is the on-disk layout of the target set.
type TargetsFile struct {
	Defaults TargetRecord   `yaml:"defaults"`
	Targets  []TargetRecord `yaml:"targets"`
}

// TargetRecord is one entry of the target set. Zero fields inherit from
// the file's defaults block.
type TargetRecord struct {
	ID                 string  `yaml:"id,omitempty"`
	Kind               string  `yaml:"kind,omitempty"`
	LatencyThresholdMS float64 `yaml:"latency_threshold_ms,omitempty"`
	AlertThreshold     int     `yaml:"alert_count_threshold,omitempty"`
	IntervalSeconds    float64 `yaml:"interval_s,omitempty"`
}

// Snapshot is the last fully valid view of the target set.
type Snapshot struct {
	Targets map[domain.TargetID]domain.Target
	Hash    string
}

// IDs returns the snapshot's target IDs in sorted order.
func (s *Snapshot) IDs() []domain.TargetID {
	if s == nil {
		return nil
	}
	ids := make([]domain.TargetID, 0, len(s.Targets))
	for id := range s.Targets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ParseTargets decodes and validates a whole target set. Any invalid record
// rejects the document.
func ParseTargets(data []byte) (*Snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDocument
	}
	var f TargetsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("targets: parse yaml: %w", err)
	}

	def := resolveDefaults(f.Defaults)
	snap := &Snapshot{
		Targets: make(map[domain.TargetID]domain.Target, len(f.Targets)),
		Hash:    hashOf(data),
	}
	for i, rec := range f.Targets {
		t, err := rec.toTarget(def)
		if err != nil {
			return nil, fmt.Errorf("targets[%d]: %w", i, err)
		}
		if _, dup := snap.Targets[t.ID]; dup {
			return nil, fmt.Errorf("targets[%d] %q: duplicate id", i, t.ID)
		}
		snap.Targets[t.ID] = t
	}
	return snap, nil
}

func resolveDefaults(d TargetRecord) TargetRecord {
	if d.Kind == "" {
		d.Kind = string(domain.KindPing)
	}
	if d.LatencyThresholdMS == 0 {
		d.LatencyThresholdMS = DefaultLatencyThresholdMS
	}
	if d.AlertThreshold == 0 {
		d.AlertThreshold = DefaultAlertThreshold
	}
	if d.IntervalSeconds == 0 {
		d.IntervalSeconds = DefaultIntervalSeconds
	}
	return d
}

func (r TargetRecord) toTarget(def TargetRecord) (domain.Target, error) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return domain.Target{}, errors.New("id is required")
	}
	kind := r.Kind
	if kind == "" {
		kind = def.Kind
	}
	thr := r.LatencyThresholdMS
	if thr == 0 {
		thr = def.LatencyThresholdMS
	}
	alert := r.AlertThreshold
	if alert == 0 {
		alert = def.AlertThreshold
	}
	secs := r.IntervalSeconds
	if secs == 0 {
		secs = def.IntervalSeconds
	}

	t := domain.Target{
		ID:                 domain.TargetID(id),
		Kind:               domain.ProbeKind(kind),
		LatencyThresholdMS: thr,
		AlertThreshold:     alert,
		Interval:           time.Duration(secs * float64(time.Second)),
	}
	switch {
	case !t.Kind.Valid():
		return t, fmt.Errorf("%q: unknown kind %q", id, kind)
	case t.LatencyThresholdMS < 0:
		return t, fmt.Errorf("%q: latency_threshold_ms must be positive", id)
	case t.AlertThreshold < 1:
		return t, fmt.Errorf("%q: alert_count_threshold must be at least 1", id)
	case t.Interval <= 0:
		return t, fmt.Errorf("%q: interval_s must be positive", id)
	}
	if t.Kind == domain.KindHTTP {
		u, err := url.Parse(id)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return t, fmt.Errorf("%q: http targets need an absolute http(s) URL", id)
		}
	} else if strings.Contains(id, "://") || strings.ContainsAny(id, " \t/") {
		return t, fmt.Errorf("%q: ping targets take a host name or IP", id)
	}
	return t, nil
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// LoadTargetsFile reads the raw document without applying defaults, for
// tools that edit the file.
func LoadTargetsFile(path string) (*TargetsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("targets: read file: %w", err)
	}
	var f TargetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("targets: parse yaml: %w", err)
	}
	return &f, nil
}

// SaveTargets validates f and replaces path atomically so a running
// monitor never observes a half-written file.
func SaveTargets(path string, f *TargetsFile) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("targets: encode: %w", err)
	}
	if _, err := ParseTargets(data); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".targets-*.yaml")
	if err != nil {
		return fmt.Errorf("targets: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("targets: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("targets: close: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
