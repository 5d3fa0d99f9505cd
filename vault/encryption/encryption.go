// Package encryption provides AES-256-GCM sealing with keys held in
// memguard-protected memory.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/awnumar/memguard"
)

// KeySize is the AES-256 key length in bytes
const KeySize = 32

// Algorithm is the name reported for this cipher
const Algorithm = "AES-256-GCM"

var (
	ErrKeyDestroyed     = errors.New("encryption key destroyed")
	ErrInvalidSealed    = errors.New("invalid sealed payload")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Key is a 256-bit key living in a memguard LockedBuffer. A Cipher built
// from it holds its own expanded key schedule on the Go heap, which Destroy
// does not reach.
type Key struct {
	buf *memguard.LockedBuffer
}

// GenerateKey creates a random key
func GenerateKey() *Key {
	return &Key{buf: memguard.NewBufferRandom(KeySize)}
}

// Alive reports whether the key material is still available
func (k *Key) Alive() bool {
	return k != nil && k.buf != nil && k.buf.IsAlive()
}

// Destroy wipes the key material. Ciphers already built from the key keep
// working. Safe to call more than once.
func (k *Key) Destroy() {
	if k.Alive() {
		k.buf.Destroy()
	}
}

// Context is a set of key/value pairs bound to a ciphertext as
// additional authenticated data
type Context map[string]string

// NewContext returns an empty Context
func NewContext() Context {
	return Context{}
}

// With adds a pair and returns the context for chaining
func (c Context) With(key, value string) Context {
	c[key] = value
	return c
}

// AAD serializes the context deterministically (sorted by key)
func (c Context) AAD() []byte {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(c[k])
		b.WriteByte(';')
	}
	return []byte(b.String())
}

// Sealed is the output of Encrypt
type Sealed struct {
	Nonce      []byte
	Ciphertext []byte
	AAD        []byte
}

// Size is the number of bytes the sealed payload occupies
func (s *Sealed) Size() int {
	return len(s.Nonce) + len(s.Ciphertext) + len(s.AAD)
}

// Cipher seals and opens payloads with a single key
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher prepares an AES-256-GCM cipher for key
func NewCipher(key *Key) (*Cipher, error) {
	if !key.Alive() {
		return nil, ErrKeyDestroyed
	}
	block, err := aes.NewCipher(key.buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to create block cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce
func (c *Cipher) Encrypt(plaintext, aad []byte) (*Sealed, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return &Sealed{
		Nonce:      nonce,
		Ciphertext: c.aead.Seal(nil, nonce, plaintext, aad),
		AAD:        aad,
	}, nil
}

// Decrypt opens a payload produced by Encrypt
func (c *Cipher) Decrypt(sealed *Sealed) ([]byte, error) {
	if sealed == nil || len(sealed.Nonce) != c.aead.NonceSize() {
		return nil, ErrInvalidSealed
	}
	plaintext, err := c.aead.Open(nil, sealed.Nonce, sealed.Ciphertext, sealed.AAD)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}
