// Package storage implements the vault's content-addressed store on top of
// interchangeable key-value backends.
package storage

import (
	"errors"
	"io"
)

// Backend defines the interface that all key-value engines must implement.
// The content store only relies on these operations so engines can be
// swapped without changing store semantics.
type Backend interface {
	// Set stores a key-value pair
	Set(key, value []byte) error

	// Get retrieves the value for key together with a closer that must be
	// called once the value is no longer used.
	// Returns ErrKeyNotFound if the key doesn't exist.
	Get(key []byte) ([]byte, io.Closer, error)

	// Flush ensures pending writes are persisted
	Flush() error

	// Close shuts the engine down and releases resources
	Close() error

	// Metrics returns engine counters
	Metrics() BackendMetrics
}

// BackendMetrics provides common counters across engines
type BackendMetrics struct {
	ReadCount   uint64
	WriteCount  uint64
	FlushCount  uint64
	ReadErrors  uint64
	WriteErrors uint64
	FlushErrors uint64

	KeyCount uint64 // 0 when the engine can't report it cheaply
	DataSize uint64 // bytes, 0 when unknown

	// Engine-specific numbers (optional)
	BackendSpecific map[string]int64
}

// BackendType names a storage engine
type BackendType string

const (
	BackendMemory BackendType = "memory"
	BackendPebble BackendType = "pebble"
	BackendBadger BackendType = "badger"
	BackendMDBX   BackendType = "mdbx"
)

// BackendConfig holds configuration for backend creation
type BackendConfig struct {
	Type BackendType
	// Path is the on-disk location. Empty selects an in-memory instance for
	// engines that support one (memory, pebble, badger); mdbx requires a path.
	Path string

	// Pebble: block cache size in bytes, negative disables the cache
	BlockCacheSize int64

	MDBX MDBXConfig
}

// MDBXConfig holds MDBX-specific options
type MDBXConfig struct {
	MaxDbs     int  // default 2
	MaxReaders int  // default 128
	NoSync     bool // don't fsync after commit
	WriteMap   bool // use writeable memory map
}

var (
	ErrKeyNotFound     = errors.New("key not found")
	ErrBackendClosed   = errors.New("backend is closed")
	ErrBackendNotFound = errors.New("storage backend not found")
	ErrPathRequired    = errors.New("backend requires a path")
)

// NewBackend creates a backend instance based on the configuration
func NewBackend(cfg BackendConfig) (Backend, error) {
	switch cfg.Type {
	case BackendMemory, "":
		return NewMemoryBackend(), nil
	case BackendPebble:
		return wrap(NewPebbleBackend(cfg))
	case BackendBadger:
		return wrap(NewBadgerBackend(cfg))
	case BackendMDBX:
		return wrap(NewMDBXBackend(cfg))
	default:
		return nil, ErrBackendNotFound
	}
}

// wrap keeps a failed constructor from leaking a typed nil into the interface
func wrap[B Backend](b B, err error) (Backend, error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ParseBackendType validates a textual engine name
func ParseBackendType(name string) (BackendType, error) {
	switch t := BackendType(name); t {
	case BackendMemory, BackendPebble, BackendBadger, BackendMDBX:
		return t, nil
	default:
		return "", ErrBackendNotFound
	}
}

// IsKeyNotFound abstracts away backend-specific not-found errors
func IsKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }
