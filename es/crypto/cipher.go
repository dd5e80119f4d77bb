// Package crypto provides the authenticated encryption and keyed hashing
// primitives that protect the event store's payloads and hash chain.
//
// Why this package exists:
//   - It seals event payloads so stored ciphertext cannot be read or forged
//     without the encryption key.
//   - It links events into an HMAC chain so deletions, substitutions and
//     edits are detectable on replay.
//   - It isolates cryptographic details from storage and replay code.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	// KeySize is the required encryption key length (AES-256).
	KeySize = 32

	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12

	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16

	// blobOverhead is the minimum length of a sealed payload.
	blobOverhead = NonceSize + TagSize
)

// ErrAuthenticationFailed indicates that a sealed payload was truncated or
// its authentication tag did not verify. It is distinct from generic errors
// because it signals tampering or key loss, never a retriable condition.
var ErrAuthenticationFailed = errors.New("crypto: payload authentication failed")

// Cipher seals and opens event payloads with AES-256-GCM.
//
// The sealed wire format is nonce || tag || ciphertext. A fresh random nonce
// is drawn for every call; nonces are never derived from counters or clocks.
type Cipher struct {
	aead cipher.AEAD
	key  []byte
}

// NewCipher builds a Cipher from a raw 32-byte key. The key is copied;
// Close wipes the copy.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("crypto: encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	owned := make([]byte, KeySize)
	copy(owned, key)

	block, err := aes.NewCipher(owned)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}
	return &Cipher{aead: aead, key: owned}, nil
}

// Encrypt seals one plaintext payload and returns nonce || tag || ciphertext.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	if c == nil || c.aead == nil {
		return nil, fmt.Errorf("crypto: cipher is not configured")
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("crypto: read nonce: %w", err)
	}

	// GCM seals to ciphertext || tag; the persisted layout keeps the tag in
	// front of the ciphertext.
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	tagStart := len(sealed) - TagSize

	blob := make([]byte, 0, NonceSize+len(sealed))
	blob = append(blob, nonce...)
	blob = append(blob, sealed[tagStart:]...)
	blob = append(blob, sealed[:tagStart]...)
	return blob, nil
}

// Decrypt opens a sealed payload. A truncated blob or a tag that does not
// verify returns ErrAuthenticationFailed; corrupted plaintext is never
// returned silently.
func (c *Cipher) Decrypt(blob []byte) ([]byte, error) {
	if c == nil || c.aead == nil {
		return nil, fmt.Errorf("crypto: cipher is not configured")
	}
	if len(blob) < blobOverhead {
		return nil, fmt.Errorf("%w: payload too short (%d bytes)", ErrAuthenticationFailed, len(blob))
	}

	nonce := blob[:NonceSize]
	tag := blob[NonceSize:blobOverhead]
	ciphertext := blob[blobOverhead:]

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	return plaintext, nil
}

// Close wipes the cipher's key copy. The cipher must not be used afterwards.
func (c *Cipher) Close() {
	if c == nil {
		return
	}
	Wipe(c.key)
	c.key = nil
	c.aead = nil
}
