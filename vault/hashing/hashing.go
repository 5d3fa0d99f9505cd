// Package hashing exposes the digest primitives used by the vault: BLAKE3,
// SHA-256 and Keccak-256, plus checksums built on top of them.
package hashing

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"lukechampine.com/blake3"
)

// Algorithm names a supported digest
type Algorithm string

const (
	Blake3    Algorithm = "blake3"
	SHA256    Algorithm = "sha256"
	Keccak256 Algorithm = "keccak256"
)

// ErrUnknownAlgorithm is returned when parsing an unsupported algorithm name
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

// ParseAlgorithm maps a textual name onto an Algorithm
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case Blake3, SHA256, Keccak256:
		return Algorithm(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

// Sum returns the 32-byte digest of data under alg.
// Unknown algorithms fall back to BLAKE3.
func Sum(alg Algorithm, data []byte) []byte {
	switch alg {
	case SHA256:
		sum := sha256.Sum256(data)
		return sum[:]
	case Keccak256:
		return crypto.Keccak256(data)
	default:
		sum := blake3.Sum256(data)
		return sum[:]
	}
}

// SumBlake3 is a shorthand for Sum(Blake3, data)
func SumBlake3(data []byte) [32]byte {
	return blake3.Sum256(data)
}

// SumSHA256 is a shorthand for Sum(SHA256, data)
func SumSHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// SumKeccak256 is a shorthand for Sum(Keccak256, data)
func SumKeccak256(data []byte) [32]byte {
	return crypto.Keccak256Hash(data)
}

// Checksum pairs a digest with the algorithm that produced it
type Checksum struct {
	Algorithm Algorithm
	Digest    []byte
}

// ComputeChecksum digests data under alg
func ComputeChecksum(alg Algorithm, data []byte) Checksum {
	return Checksum{Algorithm: alg, Digest: Sum(alg, data)}
}

// Verify reports whether data still hashes to the stored digest
func (c Checksum) Verify(data []byte) bool {
	return subtle.ConstantTimeCompare(c.Digest, Sum(c.Algorithm, data)) == 1
}

// String renders the checksum as "<algorithm>:<hex digest>"
func (c Checksum) String() string {
	return string(c.Algorithm) + ":" + hex.EncodeToString(c.Digest)
}
