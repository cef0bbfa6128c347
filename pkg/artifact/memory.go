package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// Memory is an in-memory Store for tests.
type Memory struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemory creates an empty in-memory artifact store.
func NewMemory() *Memory {
	return &Memory{files: make(map[string][]byte)}
}

// Read returns a reader over the stored bytes.
func (m *Memory) Read(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("artifact: read %s: %w", path, os.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// WriteFile replaces the stored bytes. Map assignment under the lock is
// trivially atomic to readers.
func (m *Memory) WriteFile(_ context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = bytes.Clone(data)
	return nil
}

// Delete removes the artifact (idempotent).
func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

// Exists reports whether the artifact is present.
func (m *Memory) Exists(_ context.Context, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[path]
	return ok, nil
}

// Compile-time interface check.
var _ Store = (*Memory)(nil)
