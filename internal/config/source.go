package config

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"time"
)

// Source is the read side of the target set store.
type Source interface {
	// Read returns the current document. changed is false when the content
	// is known to be identical to the previous successful read.
	Read() (data []byte, changed bool, err error)
}

// FileSource reads the target set from a file, using mtime and size as a
// cheap first check and the content itself as the final one.
type FileSource struct {
	Path string

	mu      sync.Mutex
	modTime time.Time
	size    int64
	last    []byte
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Read() ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fi, err := os.Stat(s.Path)
	if err != nil {
		return nil, false, fmt.Errorf("targets: stat: %w", err)
	}
	if s.last != nil && fi.ModTime().Equal(s.modTime) && fi.Size() == s.size {
		return s.last, false, nil
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, false, fmt.Errorf("targets: read file: %w", err)
	}
	changed := s.last == nil || !bytes.Equal(data, s.last)
	s.modTime = fi.ModTime()
	s.size = fi.Size()
	s.last = data
	return data, changed, nil
}
