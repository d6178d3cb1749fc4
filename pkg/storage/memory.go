package storage

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
)

// MemoryBackend keeps the keyspace in a mutex-guarded map. Contents live
// for the process lifetime only. The value slice handed to WriteFile is
// copied, so callers may reuse their buffers.
type MemoryBackend struct {
	mu    sync.RWMutex
	files map[string][]byte
	label string
}

// NewMemory returns an empty in-memory backend. The label is only used for
// display via Root.
func NewMemory(label string) *MemoryBackend {
	if label == "" {
		label = "(memory)"
	}
	return &MemoryBackend{
		files: make(map[string][]byte),
		label: label,
	}
}

func (m *MemoryBackend) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[name]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", name, fs.ErrNotExist)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryBackend) WriteFile(name string, data []byte) error {
	stored := make([]byte, len(data))
	copy(stored, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = stored
	return nil
}

func (m *MemoryBackend) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[name]
	return ok
}

func (m *MemoryBackend) List(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name := range m.files {
		if prefix == "" || name == prefix || strings.HasPrefix(name, prefix+"/") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryBackend) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; !ok {
		return fmt.Errorf("remove %s: %w", name, fs.ErrNotExist)
	}
	delete(m.files, name)
	return nil
}

func (m *MemoryBackend) RemoveAll(prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.files {
		if prefix == "" || name == prefix || strings.HasPrefix(name, prefix+"/") {
			delete(m.files, name)
		}
	}
	return nil
}

func (m *MemoryBackend) Root() string {
	return m.label
}

func (m *MemoryBackend) Kind() Kind {
	return Memory
}
