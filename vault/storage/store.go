package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/golang/snappy"
	"github.com/tclemos/vault-bench/vault/hashing"
)

// ErrInvalidAddress is returned when an address string can't be parsed
var ErrInvalidAddress = errors.New("invalid content address")

// Address identifies content by the digest of its bytes
type Address struct {
	Algorithm hashing.Algorithm
	Digest    []byte
}

// AddressOf computes the address of data
func AddressOf(alg hashing.Algorithm, data []byte) Address {
	return Address{Algorithm: alg, Digest: hashing.Sum(alg, data)}
}

// ParseAddress parses the "<algorithm>:<hex>" form produced by String
func ParseAddress(s string) (Address, error) {
	name, digest, ok := strings.Cut(s, ":")
	if !ok {
		return Address{}, ErrInvalidAddress
	}
	alg, err := hashing.ParseAlgorithm(name)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	raw, err := hex.DecodeString(digest)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return Address{Algorithm: alg, Digest: raw}, nil
}

func (a Address) String() string {
	return string(a.Algorithm) + ":" + hex.EncodeToString(a.Digest)
}

func (a Address) key() []byte {
	return []byte(a.String())
}

// Metadata describes a stored object
type Metadata struct {
	Address    Address
	Size       int // original length
	StoredSize int // bytes handed to the backend
	Compressed bool
}

// stored values carry a one byte header
const (
	encodingRaw    byte = 0
	encodingSnappy byte = 1
)

// Option configures a Store
type Option func(*Store)

// WithAlgorithm selects the addressing digest (default BLAKE3)
func WithAlgorithm(alg hashing.Algorithm) Option {
	return func(s *Store) { s.alg = alg }
}

// WithCompression stores objects snappy-compressed
func WithCompression() Option {
	return func(s *Store) { s.compress = true }
}

// Store is a content-addressed object store. Writing the same bytes twice
// yields the same address.
type Store struct {
	backend  Backend
	alg      hashing.Algorithm
	compress bool
}

// NewStore wraps backend
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, alg: hashing.Blake3}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend exposes the underlying engine
func (s *Store) Backend() Backend {
	return s.backend
}

// Put stores data and returns its metadata
func (s *Store) Put(ctx context.Context, data []byte) (Metadata, error) {
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}

	addr := AddressOf(s.alg, data)
	value := s.encode(data)
	if err := s.backend.Set(addr.key(), value); err != nil {
		return Metadata{}, fmt.Errorf("put %s: %w", addr, err)
	}
	return Metadata{
		Address:    addr,
		Size:       len(data),
		StoredSize: len(value),
		Compressed: s.compress,
	}, nil
}

// Get returns the content stored under addr
func (s *Store) Get(ctx context.Context, addr Address) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, closer, err := s.backend.Get(addr.key())
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", addr, err)
	}
	if closer != nil {
		defer closer.Close()
	}
	return decode(value)
}

// Has reports whether addr is present
func (s *Store) Has(ctx context.Context, addr Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, closer, err := s.backend.Get(addr.key())
	if err != nil {
		if IsKeyNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if closer != nil {
		closer.Close()
	}
	return true, nil
}

// Close flushes and closes the backend
func (s *Store) Close() error {
	flushErr := s.backend.Flush()
	return errors.Join(flushErr, s.backend.Close())
}

func (s *Store) encode(data []byte) []byte {
	if !s.compress {
		out := make([]byte, 1+len(data))
		out[0] = encodingRaw
		copy(out[1:], data)
		return out
	}
	compressed := snappy.Encode(nil, data)
	out := make([]byte, 1+len(compressed))
	out[0] = encodingSnappy
	copy(out[1:], compressed)
	return out
}

// decode copies out of value, which may be backend-owned memory
func decode(value []byte) ([]byte, error) {
	if len(value) == 0 {
		return nil, fmt.Errorf("empty stored value")
	}
	switch value[0] {
	case encodingRaw:
		out := make([]byte, len(value)-1)
		copy(out, value[1:])
		return out, nil
	case encodingSnappy:
		return snappy.Decode(nil, value[1:])
	default:
		return nil, fmt.Errorf("unknown value encoding %d", value[0])
	}
}
