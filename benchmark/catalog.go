package benchmark

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tclemos/vault-bench/vault/hashing"
	"github.com/tclemos/vault-bench/vault/storage"
)

// CatalogConfig tunes every target the catalog builds
type CatalogConfig struct {
	// Iterations overrides each target's trial count when > 0
	Iterations int `validate:"min=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Catalog builds the fixed set of registered targets. Every query returns
// freshly constructed instances in canonical order.
type Catalog struct {
	cfg CatalogConfig
}

// NewCatalog validates cfg and returns a catalog
func NewCatalog(cfg CatalogConfig) (*Catalog, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid catalog config: %w", err)
	}
	return &Catalog{cfg: cfg}, nil
}

// DefaultCatalog uses each target's own trial count
func DefaultCatalog() *Catalog {
	return &Catalog{}
}

// All returns every registered target
func (c *Catalog) All() []Target {
	targets := []Target{
		NewEncryptionTarget("encryption-1kb", "Encryption 1KB", KiB),
		NewEncryptionTarget("encryption-1mb", "Encryption 1MB", MiB),
		NewEncryptionTarget("encryption-10mb", "Encryption 10MB", 10*MiB),

		NewHashingTarget("hashing-blake3-1mb", "BLAKE3 1MB", hashing.Blake3, MiB),
		NewHashingTarget("hashing-sha256-1mb", "SHA-256 1MB", hashing.SHA256, MiB),
		NewHashingTarget("hashing-keccak256-1mb", "Keccak-256 1MB", hashing.Keccak256, MiB),
		NewChecksumTarget("checksum-verification-1mb", "Checksum Verification 1MB", hashing.Blake3, MiB),

		NewAnonymizationTarget("anonymization-100-records", "Anonymization 100 Records", ModeAnonymize, 100),
		NewAnonymizationTarget("anonymization-1000-records", "Anonymization 1000 Records", ModeAnonymize, 1000),
		NewAnonymizationTarget("anonymization-json-100-records", "JSON Anonymization 100 Records", ModeJSON, 100),
		NewAnonymizationTarget("pii-detection-1000-records", "PII Detection 1000 Records", ModeDetect, 1000),

		NewStorageTarget("storage-write-1mb", "Storage Write 1MB", StorageOptions{Op: OpWrite, Size: MiB}),
		NewStorageTarget("storage-read-1mb", "Storage Read 1MB", StorageOptions{Op: OpRead, Size: MiB}),
		NewStorageTarget("content-addressing-1mb", "Content Addressing 1MB", StorageOptions{Op: OpContentAddressing, Size: MiB}),
		NewStorageTarget("storage-write-compressed-1mb", "Compressed Storage Write 1MB", StorageOptions{Op: OpWrite, Size: MiB, Compress: true}),
	}
	for _, b := range []storage.BackendType{storage.BackendPebble, storage.BackendBadger, storage.BackendMDBX} {
		targets = append(targets,
			NewStorageTarget("storage-write-1mb-"+string(b), "Storage Write 1MB ("+string(b)+")",
				StorageOptions{Op: OpWrite, Backend: b, Size: MiB}),
			NewStorageTarget("storage-read-1mb-"+string(b), "Storage Read 1MB ("+string(b)+")",
				StorageOptions{Op: OpRead, Backend: b, Size: MiB}),
		)
	}

	if c.cfg.Iterations > 0 {
		for _, t := range targets {
			if s, ok := t.(iterationSetter); ok {
				s.setIterations(c.cfg.Iterations)
			}
		}
	}
	return targets
}

// ByPrefix returns the targets whose id starts with prefix (case-sensitive)
func (c *Catalog) ByPrefix(prefix string) []Target {
	var out []Target
	for _, t := range c.All() {
		if strings.HasPrefix(t.ID(), prefix) {
			out = append(out, t)
		}
	}
	return out
}

// ByID returns the target with the given id
func (c *Catalog) ByID(id string) (Target, bool) {
	for _, t := range c.All() {
		if t.ID() == id {
			return t, true
		}
	}
	return nil, false
}

// IDs lists every target id in canonical order
func (c *Catalog) IDs() []string {
	all := c.All()
	ids := make([]string, len(all))
	for i, t := range all {
		ids[i] = t.ID()
	}
	return ids
}

// AllTargets returns every target of the default catalog
func AllTargets() []Target { return DefaultCatalog().All() }

// TargetsByPrefix filters the default catalog by id prefix
func TargetsByPrefix(prefix string) []Target { return DefaultCatalog().ByPrefix(prefix) }

// TargetByID looks up a target of the default catalog
func TargetByID(id string) (Target, bool) { return DefaultCatalog().ByID(id) }

// ListIDs lists the default catalog's ids
func ListIDs() []string { return DefaultCatalog().IDs() }
