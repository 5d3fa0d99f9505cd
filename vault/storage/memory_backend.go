package storage

import (
	"io"
	"sync"
)

// MemoryBackend keeps everything in a map. It's the reference engine and
// the default for benchmarks that measure store overhead only.
type MemoryBackend struct {
	mu      sync.RWMutex
	data    map[string][]byte
	closed  bool
	metrics BackendMetrics
}

// NewMemoryBackend returns an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// Set implements Backend.Set
func (m *MemoryBackend) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.metrics.WriteErrors++
		return ErrBackendClosed
	}
	v := make([]byte, len(value))
	copy(v, value)
	if old, ok := m.data[string(key)]; ok {
		m.metrics.DataSize -= uint64(len(old))
	}
	m.data[string(key)] = v
	m.metrics.DataSize += uint64(len(v))
	m.metrics.WriteCount++
	return nil
}

// Get implements Backend.Get
func (m *MemoryBackend) Get(key []byte) ([]byte, io.Closer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics.ReadCount++
	if m.closed {
		m.metrics.ReadErrors++
		return nil, nil, ErrBackendClosed
	}
	v, ok := m.data[string(key)]
	if !ok {
		return nil, nil, ErrKeyNotFound
	}
	return v, noopCloser{}, nil
}

// Flush implements Backend.Flush. Nothing to persist.
func (m *MemoryBackend) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.metrics.FlushErrors++
		return ErrBackendClosed
	}
	m.metrics.FlushCount++
	return nil
}

// Close implements Backend.Close
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Metrics implements Backend.Metrics
func (m *MemoryBackend) Metrics() BackendMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := m.metrics
	metrics.KeyCount = uint64(len(m.data))
	return metrics
}
