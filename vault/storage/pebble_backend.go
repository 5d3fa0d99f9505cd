package storage

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/rs/zerolog/log"
)

// PebbleBackend implements the Backend interface for Pebble
type PebbleBackend struct {
	db    *pebble.DB
	cache *pebble.Cache

	reads, writes, flushes             atomic.Uint64
	readErrors, writeErrors, flushErrs atomic.Uint64
}

// NewPebbleBackend opens a Pebble instance. An empty path uses an
// in-memory filesystem.
func NewPebbleBackend(cfg BackendConfig) (*PebbleBackend, error) {
	opts := &pebble.Options{}

	path := cfg.Path
	if path == "" {
		opts.FS = vfs.NewMem()
		path = "pebble"
	}

	var cache *pebble.Cache
	if cfg.BlockCacheSize >= 0 {
		size := cfg.BlockCacheSize
		if size == 0 {
			size = 8 << 20
		}
		cache = pebble.NewCache(size)
		opts.Cache = cache

		log.Debug().
			Int64("block_cache_size", size).
			Bool("in_memory", cfg.Path == "").
			Msg("Created Pebble with block cache")
	} else {
		log.Debug().Bool("in_memory", cfg.Path == "").Msg("Created Pebble with block cache disabled")
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		if cache != nil {
			cache.Unref()
		}
		return nil, err
	}

	return &PebbleBackend{
		db:    db,
		cache: cache,
	}, nil
}

// Set implements Backend.Set for Pebble
func (p *PebbleBackend) Set(key, value []byte) error {
	if p.db == nil {
		p.writeErrors.Add(1)
		return ErrBackendClosed
	}
	p.writes.Add(1)
	if err := p.db.Set(key, value, pebble.NoSync); err != nil {
		p.writeErrors.Add(1)
		return err
	}
	return nil
}

// Get implements Backend.Get for Pebble
func (p *PebbleBackend) Get(key []byte) ([]byte, io.Closer, error) {
	if p.db == nil {
		p.readErrors.Add(1)
		return nil, nil, ErrBackendClosed
	}
	p.reads.Add(1)
	value, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil, ErrKeyNotFound
		}
		p.readErrors.Add(1)
		return nil, nil, err
	}
	return value, closer, nil
}

// Flush implements Backend.Flush for Pebble
func (p *PebbleBackend) Flush() error {
	if p.db == nil {
		p.flushErrs.Add(1)
		return ErrBackendClosed
	}
	p.flushes.Add(1)
	if err := p.db.Flush(); err != nil {
		p.flushErrs.Add(1)
		return err
	}
	return nil
}

// Close implements Backend.Close for Pebble
func (p *PebbleBackend) Close() error {
	var err error
	if p.db != nil {
		err = p.db.Close()
		p.db = nil
	}

	if p.cache != nil {
		p.cache.Unref()
		p.cache = nil
	}

	return err
}

// Metrics implements Backend.Metrics for Pebble
func (p *PebbleBackend) Metrics() BackendMetrics {
	metrics := BackendMetrics{
		ReadCount:       p.reads.Load(),
		WriteCount:      p.writes.Load(),
		FlushCount:      p.flushes.Load(),
		ReadErrors:      p.readErrors.Load(),
		WriteErrors:     p.writeErrors.Load(),
		FlushErrors:     p.flushErrs.Load(),
		BackendSpecific: make(map[string]int64),
	}

	if p.db == nil {
		return metrics
	}

	pm := p.db.Metrics()
	metrics.DataSize = pm.DiskSpaceUsage()
	metrics.BackendSpecific["memtable_size"] = int64(pm.MemTable.Size)
	metrics.BackendSpecific["compactions"] = pm.Compact.Count
	metrics.BackendSpecific["flushes"] = pm.Flush.Count

	if p.cache != nil {
		cm := p.cache.Metrics()
		metrics.BackendSpecific["cache_size"] = cm.Size
		metrics.BackendSpecific["cache_hits"] = cm.Hits
		metrics.BackendSpecific["cache_misses"] = cm.Misses
	}

	return metrics
}
