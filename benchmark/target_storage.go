package benchmark

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/tclemos/vault-bench/vault/storage"
)

const defaultStorageIterations = 100

// StorageOp selects what a storage trial does
type StorageOp string

const (
	// OpWrite stores a fresh payload per trial
	OpWrite StorageOp = "write"
	// OpRead reads back a payload stored during setup
	OpRead StorageOp = "read"
	// OpContentAddressing stores a payload and reads it back by address
	OpContentAddressing StorageOp = "content_addressing"
)

// StorageOptions configures a StorageTarget
type StorageOptions struct {
	Op       StorageOp
	Backend  storage.BackendType
	Size     int
	Compress bool
}

// StorageTarget measures the content-addressed store on one backend
type StorageTarget struct {
	BaseTarget
	opts StorageOptions

	store   *storage.Store
	tempDir string
	payload []byte
	stored  storage.Metadata
}

// NewStorageTarget builds a storage target
func NewStorageTarget(id, name string, opts StorageOptions) *StorageTarget {
	if opts.Backend == "" {
		opts.Backend = storage.BackendMemory
	}
	desc := fmt.Sprintf("%s of a %s payload on the %s backend", opts.Op, humanBytes(opts.Size), opts.Backend)
	if opts.Compress {
		desc += " with snappy compression"
	}
	return &StorageTarget{
		BaseTarget: BaseTarget{
			TargetID:          id,
			TargetName:        name,
			TargetDescription: desc,
			Iterations:        defaultStorageIterations,
		},
		opts: opts,
	}
}

// onDisk reports whether the backend runs in a private temp directory.
// Badger's in-memory mode caps values at 1 MiB, below a 1 MiB payload plus
// the store's header.
func (t *StorageTarget) onDisk() bool {
	switch t.opts.Backend {
	case storage.BackendMDBX, storage.BackendBadger:
		return true
	}
	return false
}

// Setup opens the backend. On-disk engines get a private temp directory.
func (t *StorageTarget) Setup(ctx context.Context) error {
	if t.store != nil {
		return nil
	}

	cfg := storage.BackendConfig{Type: t.opts.Backend}
	if t.onDisk() {
		dir, err := os.MkdirTemp("", "vault-bench-"+string(t.opts.Backend)+"-")
		if err != nil {
			return fmt.Errorf("create temp dir: %w", err)
		}
		t.tempDir = dir
		cfg.Path = dir
		cfg.MDBX.NoSync = true
	}

	backend, err := storage.NewBackend(cfg)
	if err != nil {
		t.removeTempDir()
		return fmt.Errorf("open %s backend: %w", t.opts.Backend, err)
	}

	var opts []storage.Option
	if t.opts.Compress {
		opts = append(opts, storage.WithCompression())
	}
	t.store = storage.NewStore(backend, opts...)
	t.payload = generatePayload(t.opts.Size)

	if t.opts.Op == OpRead {
		md, err := t.store.Put(ctx, t.payload)
		if err != nil {
			_ = t.Teardown(ctx)
			return fmt.Errorf("seed payload: %w", err)
		}
		t.stored = md
	}
	return nil
}

// Run implements Target
func (t *StorageTarget) Run(ctx context.Context) (*Result, error) {
	if t.store == nil {
		return nil, fmt.Errorf("%s: store not initialized", t.TargetID)
	}

	var storedBytes int
	trial := t.trial(ctx, &storedBytes)
	samples, err := Measure(t.Iterations, func(i int) error {
		if t.opts.Op != OpRead {
			uniquePayload(t.payload, i)
		}
		return nil
	}, trial)
	if err != nil {
		return nil, err
	}

	s, err := ComputeStats(samples)
	if err != nil {
		return nil, err
	}

	size := uint64(t.opts.Size)
	m := s.Metrics(Throughput{PayloadBytes: size, OpsPerTrial: 1}).
		WithCustom("operation", string(t.opts.Op)).
		WithCustom("backend", string(t.opts.Backend)).
		WithCustom("compression", t.opts.Compress)
	if bps, ok := s.BytesPerSecond(size); ok {
		m.WithCustom("throughput_bps", bps)
	}
	if t.opts.Compress && storedBytes > 0 {
		m.WithCustom("stored_bytes", storedBytes)
		m.WithCustom("compression_ratio", float64(t.opts.Size)/float64(storedBytes))
	}

	bm := t.store.Backend().Metrics()
	m.WithCustom("backend_writes", bm.WriteCount).
		WithCustom("backend_reads", bm.ReadCount)
	if bm.DataSize > 0 {
		m.WithCustom("backend_data_size", bm.DataSize)
	}
	return NewResult(t.TargetID, m), nil
}

func (t *StorageTarget) trial(ctx context.Context, storedBytes *int) TrialFunc {
	switch t.opts.Op {
	case OpRead:
		return func(int) error {
			data, err := t.store.Get(ctx, t.stored.Address)
			if err != nil {
				return err
			}
			if len(data) != t.opts.Size {
				return fmt.Errorf("read %d bytes, want %d", len(data), t.opts.Size)
			}
			return nil
		}
	case OpContentAddressing:
		return func(int) error {
			md, err := t.store.Put(ctx, t.payload)
			if err != nil {
				return err
			}
			data, err := t.store.Get(ctx, md.Address)
			if err != nil {
				return err
			}
			if !bytes.Equal(data, t.payload) {
				return fmt.Errorf("content under %s differs", md.Address)
			}
			*storedBytes = md.StoredSize
			return nil
		}
	default:
		return func(int) error {
			md, err := t.store.Put(ctx, t.payload)
			if err != nil {
				return err
			}
			*storedBytes = md.StoredSize
			return nil
		}
	}
}

// Teardown closes the store and removes any temp directory
func (t *StorageTarget) Teardown(context.Context) error {
	var err error
	if t.store != nil {
		err = t.store.Close()
		t.store = nil
	}
	t.payload = nil
	if rmErr := t.removeTempDir(); err == nil {
		err = rmErr
	}
	return err
}

func (t *StorageTarget) removeTempDir() error {
	if t.tempDir == "" {
		return nil
	}
	dir := t.tempDir
	t.tempDir = ""
	return os.RemoveAll(dir)
}
