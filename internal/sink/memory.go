package sink

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

// MemorySink keeps exports in memory. It is safe for concurrent use.
type MemorySink struct {
	name     string
	mu       sync.RWMutex
	files    map[string][]byte
	modTimes map[string]time.Time
}

var (
	_ ibex.Sink          = (*MemorySink)(nil)
	_ ibex.ModTimeSetter = (*MemorySink)(nil)
)

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink(name string) *MemorySink {
	return &MemorySink{
		name:     name,
		files:    make(map[string][]byte),
		modTimes: make(map[string]time.Time),
	}
}

func (m *MemorySink) Location() string { return "memory:" + m.name }

// Create buffers writes and stores them on Close.
func (m *MemorySink) Create(name string) (io.WriteCloser, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	return &memoryFile{sink: m, name: name}, nil
}

func (m *MemorySink) SetModTime(name string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; !ok {
		return fmt.Errorf("file not found: %s", name)
	}
	m.modTimes[name] = t
	return nil
}

// Get returns the content stored under name.
func (m *MemorySink) Get(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[name]
	return data, ok
}

// ModTime returns the modification time recorded for name.
func (m *MemorySink) ModTime(name string) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.modTimes[name]
}

// Names returns the stored names in sorted order.
func (m *MemorySink) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.files))
	for n := range m.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type memoryFile struct {
	sink *MemorySink
	name string
	buf  bytes.Buffer
}

func (f *memoryFile) Write(p []byte) (int, error) { return f.buf.Write(p) }

var _ ibex.Aborter = (*memoryFile)(nil)

// Abort forgets the buffered content.
func (f *memoryFile) Abort() error {
	f.buf.Reset()
	return nil
}

func (f *memoryFile) Close() error {
	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	f.sink.files[f.name] = f.buf.Bytes()
	return nil
}
