package hashing

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumKnownVectors(t *testing.T) {
	data := []byte("abc")

	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		hex.EncodeToString(Sum(SHA256, data)))
	assert.Equal(t,
		"4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45",
		hex.EncodeToString(Sum(Keccak256, data)))
	assert.Len(t, Sum(Blake3, data), 32)
}

func TestShorthandsMatchSum(t *testing.T) {
	data := []byte("vault")

	b := SumBlake3(data)
	s := SumSHA256(data)
	k := SumKeccak256(data)

	assert.Equal(t, Sum(Blake3, data), b[:])
	assert.Equal(t, Sum(SHA256, data), s[:])
	assert.Equal(t, Sum(Keccak256, data), k[:])
}

func TestChecksumVerify(t *testing.T) {
	data := []byte("payload")
	sum := ComputeChecksum(Blake3, data)

	assert.True(t, sum.Verify(data))
	assert.False(t, sum.Verify([]byte("payloaD")))
	assert.Contains(t, sum.String(), "blake3:")
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm("keccak256")
	require.NoError(t, err)
	assert.Equal(t, Keccak256, alg)

	_, err = ParseAlgorithm("md5")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}
