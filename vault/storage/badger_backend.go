package storage

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
)

// BadgerBackend implements the Backend interface for Badger
type BadgerBackend struct {
	db       *badger.DB
	inMemory bool
	closed   atomic.Bool

	reads, writes, flushes             atomic.Uint64
	readErrors, writeErrors, flushErrs atomic.Uint64
}

// NewBadgerBackend opens a Badger instance. An empty path runs Badger in
// memory-only mode.
func NewBadgerBackend(cfg BackendConfig) (*BadgerBackend, error) {
	var opts badger.Options
	if cfg.Path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerBackend{db: db, inMemory: cfg.Path == ""}, nil
}

// Set implements Backend.Set for Badger
func (b *BadgerBackend) Set(key, value []byte) error {
	if b.closed.Load() {
		b.writeErrors.Add(1)
		return ErrBackendClosed
	}
	b.writes.Add(1)
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		b.writeErrors.Add(1)
		return err
	}
	return nil
}

// Get implements Backend.Get for Badger. The value is copied out of the
// transaction so the returned closer is a no-op.
func (b *BadgerBackend) Get(key []byte) ([]byte, io.Closer, error) {
	if b.closed.Load() {
		b.readErrors.Add(1)
		return nil, nil, ErrBackendClosed
	}
	b.reads.Add(1)

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil, ErrKeyNotFound
		}
		b.readErrors.Add(1)
		return nil, nil, err
	}
	return value, noopCloser{}, nil
}

// Flush implements Backend.Flush for Badger
func (b *BadgerBackend) Flush() error {
	if b.closed.Load() {
		b.flushErrs.Add(1)
		return ErrBackendClosed
	}
	b.flushes.Add(1)
	if b.inMemory {
		return nil
	}
	if err := b.db.Sync(); err != nil {
		b.flushErrs.Add(1)
		return err
	}
	return nil
}

// Close implements Backend.Close for Badger
func (b *BadgerBackend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}

// Metrics implements Backend.Metrics for Badger
func (b *BadgerBackend) Metrics() BackendMetrics {
	metrics := BackendMetrics{
		ReadCount:       b.reads.Load(),
		WriteCount:      b.writes.Load(),
		FlushCount:      b.flushes.Load(),
		ReadErrors:      b.readErrors.Load(),
		WriteErrors:     b.writeErrors.Load(),
		FlushErrors:     b.flushErrs.Load(),
		BackendSpecific: make(map[string]int64),
	}
	if b.closed.Load() {
		return metrics
	}

	lsm, vlog := b.db.Size()
	metrics.DataSize = uint64(lsm + vlog)
	metrics.BackendSpecific["lsm_size"] = lsm
	metrics.BackendSpecific["vlog_size"] = vlog
	return metrics
}
