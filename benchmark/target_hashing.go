package benchmark

import (
	"context"
	"fmt"

	"github.com/tclemos/vault-bench/vault/hashing"
)

const defaultHashingIterations = 1000

// HashingTarget measures digest computation over a fixed payload
type HashingTarget struct {
	BaseTarget
	alg  hashing.Algorithm
	size int

	payload []byte
}

// NewHashingTarget builds a hashing target for alg over size bytes
func NewHashingTarget(id, name string, alg hashing.Algorithm, size int) *HashingTarget {
	return &HashingTarget{
		BaseTarget: BaseTarget{
			TargetID:          id,
			TargetName:        name,
			TargetDescription: fmt.Sprintf("%s digest of a %s payload", alg, humanBytes(size)),
			Iterations:        defaultHashingIterations,
		},
		alg:  alg,
		size: size,
	}
}

// Setup implements Target
func (t *HashingTarget) Setup(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.payload == nil {
		t.payload = generatePayload(t.size)
	}
	return nil
}

// Run implements Target
func (t *HashingTarget) Run(ctx context.Context) (*Result, error) {
	if err := t.Setup(ctx); err != nil {
		return nil, err
	}

	var digest []byte
	samples, err := Measure(t.Iterations, nil, func(int) error {
		digest = hashing.Sum(t.alg, t.payload)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s, err := ComputeStats(samples)
	if err != nil {
		return nil, err
	}
	m := s.Metrics(Throughput{PayloadBytes: uint64(t.size), OpsPerTrial: 1}).
		WithCustom("algorithm", string(t.alg)).
		WithCustom("digest_bytes", len(digest))
	if bps, ok := s.BytesPerSecond(uint64(t.size)); ok {
		m.WithCustom("throughput_bps", bps)
	}
	return NewResult(t.TargetID, m), nil
}

// Teardown implements Target
func (t *HashingTarget) Teardown(context.Context) error {
	t.payload = nil
	return nil
}

// ChecksumTarget measures checksum verification. The checksum is computed
// once in setup; each trial re-hashes the payload and compares.
type ChecksumTarget struct {
	BaseTarget
	alg  hashing.Algorithm
	size int

	payload  []byte
	checksum hashing.Checksum
}

// NewChecksumTarget builds a checksum verification target
func NewChecksumTarget(id, name string, alg hashing.Algorithm, size int) *ChecksumTarget {
	return &ChecksumTarget{
		BaseTarget: BaseTarget{
			TargetID:          id,
			TargetName:        name,
			TargetDescription: fmt.Sprintf("%s checksum verification of a %s payload", alg, humanBytes(size)),
			Iterations:        defaultHashingIterations,
		},
		alg:  alg,
		size: size,
	}
}

// Setup implements Target
func (t *ChecksumTarget) Setup(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.payload != nil {
		return nil
	}
	t.payload = generatePayload(t.size)
	t.checksum = hashing.ComputeChecksum(t.alg, t.payload)
	return nil
}

// Run implements Target
func (t *ChecksumTarget) Run(ctx context.Context) (*Result, error) {
	if err := t.Setup(ctx); err != nil {
		return nil, err
	}

	var verified int
	samples, err := Measure(t.Iterations, nil, func(int) error {
		if t.checksum.Verify(t.payload) {
			verified++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s, err := ComputeStats(samples)
	if err != nil {
		return nil, err
	}
	m := s.Metrics(Throughput{PayloadBytes: uint64(t.size), OpsPerTrial: 1}).
		WithSuccessRate(float64(verified) / float64(len(samples))).
		WithCustom("algorithm", string(t.alg))
	if bps, ok := s.BytesPerSecond(uint64(t.size)); ok {
		m.WithCustom("throughput_bps", bps)
	}
	return NewResult(t.TargetID, m), nil
}

// Teardown implements Target
func (t *ChecksumTarget) Teardown(context.Context) error {
	t.payload = nil
	return nil
}
