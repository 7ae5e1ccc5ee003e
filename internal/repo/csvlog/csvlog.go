// Package csvlog is the flat-file result backend: one CSV file per target,
// each rotated by lumberjack.
package csvlog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/repo"
)

var _ repo.ResultStore = (*Writer)(nil)

var header = []string{"timestamp", "latency_ms", "consecutive_count"}

// TimeLayout is the timestamp format of every row.
const TimeLayout = "2006-01-02 15:04:05.000"

type Writer struct {
	Dir        string
	MaxSizeMB  int
	MaxBackups int

	mu    sync.Mutex
	files map[domain.TargetID]*lumberjack.Logger
}

func New(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csv dir: %w", err)
	}
	return &Writer{
		Dir:        dir,
		MaxSizeMB:  10,
		MaxBackups: 5,
		files:      make(map[domain.TargetID]*lumberjack.Logger),
	}, nil
}

// Append writes one row for r to its target's file. The header goes in
// first when the file does not exist yet or is empty.
func (w *Writer) Append(ctx context.Context, r domain.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, fresh := w.file(r.TargetID)

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if fresh {
		_ = cw.Write(header)
	}
	latency := ""
	if r.LatencyMS != nil {
		latency = strconv.FormatFloat(*r.LatencyMS, 'f', 2, 64)
	}
	_ = cw.Write([]string{
		r.Timestamp.Local().Format(TimeLayout),
		latency,
		strconv.Itoa(r.Consecutive),
	})
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csv encode: %w", err)
	}

	// a single Write keeps header and row together
	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("csv write %s: %w", f.Filename, err)
	}
	return nil
}

// file returns the rotating writer for id and whether it still needs a
// header.
func (w *Writer) file(id domain.TargetID) (*lumberjack.Logger, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if f, ok := w.files[id]; ok {
		return f, false
	}
	f := &lumberjack.Logger{
		Filename:   w.Path(id),
		MaxSize:    w.MaxSizeMB,
		MaxBackups: w.MaxBackups,
		Compress:   true,
	}
	w.files[id] = f
	fi, err := os.Stat(f.Filename)
	return f, err != nil || fi.Size() == 0
}

// Path is where rows for id are written.
func (w *Writer) Path(id domain.TargetID) string {
	return filepath.Join(w.Dir, FileName(id))
}

// FileName maps a target id (host or URL) to a safe file name. The readable
// part is lossy, so a short hash of the id keeps distinct targets apart.
func FileName(id domain.TargetID) string {
	s := strings.TrimSpace(string(id))
	for _, p := range []string{"https://", "http://"} {
		s = strings.TrimPrefix(s, p)
	}
	var b strings.Builder
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = "target"
	}
	sum := sha256.Sum256([]byte(id))
	return name + "-" + hex.EncodeToString(sum[:4]) + ".csv"
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var first error
	for id, f := range w.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
		delete(w.files, id)
	}
	return first
}
