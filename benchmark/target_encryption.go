package benchmark

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/tclemos/vault-bench/vault/encryption"
)

const defaultEncryptionIterations = 100

// EncryptionTarget measures an AES-256-GCM encrypt/decrypt round trip over a
// fixed payload. The key lives in a memguard enclave for the target's
// lifetime.
type EncryptionTarget struct {
	BaseTarget
	size int

	cipher  *encryption.Cipher
	key     *encryption.Key
	payload []byte
	aad     []byte
}

// NewEncryptionTarget builds an encryption target for a payload of size bytes
func NewEncryptionTarget(id, name string, size int) *EncryptionTarget {
	return &EncryptionTarget{
		BaseTarget: BaseTarget{
			TargetID:          id,
			TargetName:        name,
			TargetDescription: fmt.Sprintf("AES-256-GCM encrypt and decrypt of a %s payload", humanBytes(size)),
			Iterations:        defaultEncryptionIterations,
		},
		size: size,
	}
}

// Setup creates the key and payload. Calling it twice keeps the first key.
func (t *EncryptionTarget) Setup(context.Context) error {
	if t.cipher != nil {
		return nil
	}
	key := encryption.GenerateKey()
	c, err := encryption.NewCipher(key)
	if err != nil {
		key.Destroy()
		return fmt.Errorf("create cipher: %w", err)
	}
	t.key = key
	t.cipher = c
	t.payload = generatePayload(t.size)
	t.aad = encryption.NewContext().
		With("target", t.TargetID).
		With("purpose", "benchmark").
		AAD()
	return nil
}

// Run implements Target
func (t *EncryptionTarget) Run(ctx context.Context) (*Result, error) {
	if t.cipher == nil {
		if err := t.Setup(ctx); err != nil {
			return nil, err
		}
	}

	encRec := NewRecorder(t.Iterations)
	decRec := NewRecorder(t.Iterations)
	for i := 0; i < t.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var sealed *encryption.Sealed
		err := encRec.Time(func() error {
			var err error
			sealed, err = t.cipher.Encrypt(t.payload, t.aad)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("encrypt trial %d: %w", i, err)
		}

		var plain []byte
		err = decRec.Time(func() error {
			var err error
			plain, err = t.cipher.Decrypt(sealed)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("decrypt trial %d: %w", i, err)
		}
		if !bytes.Equal(plain, t.payload) {
			return nil, fmt.Errorf("trial %d: decrypted payload differs", i)
		}
	}

	enc, err := encRec.Stats()
	if err != nil {
		return nil, err
	}
	dec, err := decRec.Stats()
	if err != nil {
		return nil, err
	}

	// one trial is an encrypt plus a decrypt
	round, err := pairwiseSum(encRec.Samples(), decRec.Samples())
	if err != nil {
		return nil, err
	}
	m := round.Metrics(Throughput{PayloadBytes: uint64(t.size), OpsPerTrial: 1}).
		WithCustom("algorithm", encryption.Algorithm).
		WithCustom("encrypt_avg_ms", enc.Average).
		WithCustom("decrypt_avg_ms", dec.Average)
	if bps, ok := enc.BytesPerSecond(uint64(t.size)); ok {
		m.WithCustom("encrypt_throughput_bps", bps)
	}
	if bps, ok := dec.BytesPerSecond(uint64(t.size)); ok {
		m.WithCustom("decrypt_throughput_bps", bps)
	}

	return NewResult(t.TargetID, m), nil
}

// Teardown wipes the key
func (t *EncryptionTarget) Teardown(context.Context) error {
	if t.key != nil {
		t.key.Destroy()
	}
	t.key = nil
	t.cipher = nil
	t.payload = nil
	return nil
}

// pairwiseSum adds two equally long sample series element by element and
// computes statistics over the result.
func pairwiseSum(a, b []float64) (Stats, error) {
	if len(a) != len(b) {
		return Stats{}, errors.New("sample series differ in length")
	}
	sum := make([]float64, len(a))
	for i := range a {
		sum[i] = a[i] + b[i]
	}
	return ComputeStats(sum)
}

func humanBytes(n int) string {
	switch {
	case n >= MiB && n%MiB == 0:
		return fmt.Sprintf("%dMB", n/MiB)
	case n >= KiB && n%KiB == 0:
		return fmt.Sprintf("%dKB", n/KiB)
	default:
		return fmt.Sprintf("%dB", n)
	}
}
