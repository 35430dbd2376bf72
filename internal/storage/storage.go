// Package storage persists readings in save order.
package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sweeney/sensor-gateway/internal/device"
)

// Kinds accepted by Open.
const (
	KindNone   = "none"
	KindMemory = "memory"
	KindFile   = "file"
)

// Open returns the backend named by kind. KindNone (or "") returns nil.
func Open(kind, path string) (device.Storage, error) {
	switch strings.ToLower(kind) {
	case "", KindNone:
		return nil, nil
	case KindMemory:
		return NewMemory(), nil
	case KindFile:
		f, err := NewFile(path)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("storage: unknown kind %q: %w", kind, device.ErrUnsupported)
	}
}

// Memory keeps readings in a slice. Safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	readings []device.Reading
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{}
}

// Save appends r.
func (m *Memory) Save(r device.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = append(m.readings, r)
	return nil
}

// List returns a copy of every saved reading.
func (m *Memory) List() ([]device.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]device.Reading, len(m.readings))
	copy(out, m.readings)
	return out, nil
}

// Clear drops every reading.
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = nil
	return nil
}

// File appends readings to a file as JSON lines.
type File struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// NewFile opens (creating if needed) path for appending.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: file path required: %w", device.ErrInitialization)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: %w: %v", device.ErrInitialization, err)
	}
	return &File{path: path, f: f}, nil
}

// Save appends r as one line.
func (s *File) Save(r device.Reading) error {
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("storage: %w: %v", device.ErrSave, err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.Write(line); err != nil {
		return fmt.Errorf("storage: %w: %v", device.ErrSave, err)
	}
	return nil
}

// List reads every line back in save order.
func (s *File) List() ([]device.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("storage: %w: %v", device.ErrIO, err)
	}
	var out []device.Reading
	sc := bufio.NewScanner(s.f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for n := 1; sc.Scan(); n++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var r device.Reading
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("storage: %s line %d: %w: %v", s.path, n, device.ErrInvalidData, err)
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("storage: %w: %v", device.ErrIO, err)
	}
	return out, nil
}

// Clear truncates the file.
func (s *File) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.f.Truncate(0); err != nil {
		return fmt.Errorf("storage: %w: %v", device.ErrIO, err)
	}
	return nil
}

// Close closes the file.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
