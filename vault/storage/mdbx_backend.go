package storage

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/erigontech/mdbx-go/mdbx"
)

// MDBXBackend implements the Backend interface using MDBX (libmdbx)
type MDBXBackend struct {
	env     *mdbx.Env
	db      mdbx.DBI
	path    string
	mu      sync.RWMutex
	closed  bool
	metrics BackendMetrics
}

// NewMDBXBackend creates an MDBX environment under cfg.Path
func NewMDBXBackend(cfg BackendConfig) (*MDBXBackend, error) {
	path := cfg.Path
	if path == "" {
		return nil, fmt.Errorf("mdbx: %w", ErrPathRequired)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	env, err := mdbx.NewEnv(mdbx.Default)
	if err != nil {
		return nil, fmt.Errorf("failed to create MDBX environment: %w", err)
	}

	if err := env.SetGeometry(-1, -1, -1, -1, -1, -1); err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to set geometry: %w", err)
	}

	maxDbs := cfg.MDBX.MaxDbs
	if maxDbs == 0 {
		maxDbs = 2
	}
	if err := env.SetOption(mdbx.OptMaxDB, uint64(maxDbs)); err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to set max databases: %w", err)
	}

	maxReaders := cfg.MDBX.MaxReaders
	if maxReaders == 0 {
		maxReaders = 128
	}
	if err := env.SetOption(mdbx.OptMaxReaders, uint64(maxReaders)); err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to set max readers: %w", err)
	}

	flags := uint(mdbx.EnvDefaults)
	if cfg.MDBX.NoSync {
		flags |= mdbx.UtterlyNoSync
	}
	if cfg.MDBX.WriteMap {
		flags |= mdbx.WriteMap
	}

	if err := env.Open(path, flags, 0644); err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to open MDBX environment: %w", err)
	}

	var db mdbx.DBI
	err = env.Update(func(txn *mdbx.Txn) error {
		var err error
		db, err = txn.OpenRoot(mdbx.Create)
		return err
	})
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &MDBXBackend{
		env:  env,
		db:   db,
		path: path,
	}, nil
}

// Set stores a key-value pair in its own write transaction
func (d *MDBXBackend) Set(key, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.metrics.WriteErrors++
		return ErrBackendClosed
	}
	d.metrics.WriteCount++

	err := d.env.Update(func(txn *mdbx.Txn) error {
		return txn.Put(d.db, key, value, 0)
	})
	if err != nil {
		d.metrics.WriteErrors++
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// Get retrieves a value by key
func (d *MDBXBackend) Get(key []byte) ([]byte, io.Closer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.metrics.ReadErrors++
		return nil, nil, ErrBackendClosed
	}
	d.metrics.ReadCount++

	var value []byte
	err := d.env.View(func(txn *mdbx.Txn) error {
		val, err := txn.Get(d.db, key)
		if err != nil {
			return err
		}
		// the value is only valid during the transaction
		value = make([]byte, len(val))
		copy(value, val)
		return nil
	})
	if err != nil {
		if mdbx.IsNotFound(err) {
			return nil, nil, ErrKeyNotFound
		}
		d.metrics.ReadErrors++
		return nil, nil, fmt.Errorf("failed to get key: %w", err)
	}
	return value, noopCloser{}, nil
}

// Flush forces a synchronous flush to disk
func (d *MDBXBackend) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.metrics.FlushErrors++
		return ErrBackendClosed
	}
	d.metrics.FlushCount++

	if err := d.env.Sync(true, false); err != nil {
		d.metrics.FlushErrors++
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// Close closes the environment
func (d *MDBXBackend) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.env.Close()
	return nil
}

// Path is the directory holding the environment
func (d *MDBXBackend) Path() string {
	return d.path
}

// Metrics returns a copy of the counters plus environment stats
func (d *MDBXBackend) Metrics() BackendMetrics {
	d.mu.RLock()
	defer d.mu.RUnlock()

	metrics := d.metrics
	if !d.closed {
		if stat, err := d.env.Stat(); err == nil {
			metrics.KeyCount = stat.Entries
			metrics.DataSize = usedBytes(stat)
		}
	}
	return metrics
}

// usedBytes is the space taken by the root tree's pages, not the map size
func usedBytes(stat *mdbx.Stat) uint64 {
	pages := stat.BranchPages + stat.LeafPages + stat.OverflowPages
	return pages * uint64(stat.PSize)
}
