package crypto

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"fmt"
)

// ChainHashSize is the length of a chain hash in bytes (HMAC-SHA512 output).
const ChainHashSize = sha512.Size

// minMACKeySize is the minimum accepted MAC key length.
const minMACKeySize = 32

// MAC computes and verifies the keyed hashes that seal the event chain.
// The MAC key must be distinct from the encryption key; NewSuite enforces
// this when both are constructed together.
type MAC struct {
	key []byte
}

// NewMAC builds a MAC from a raw key of at least 32 bytes. The key is
// copied; Close wipes the copy.
func NewMAC(key []byte) (*MAC, error) {
	if len(key) < minMACKeySize {
		return nil, fmt.Errorf("crypto: mac key must be at least %d bytes, got %d", minMACKeySize, len(key))
	}
	owned := make([]byte, len(key))
	copy(owned, key)
	return &MAC{key: owned}, nil
}

// Sum returns the 64-byte HMAC-SHA512 tag of data.
func (m *MAC) Sum(data []byte) []byte {
	mac := hmac.New(sha512.New, m.key)
	_, _ = mac.Write(data)
	return mac.Sum(nil)
}

// Verify reports whether expected is the tag of data, using a constant-time
// comparison.
func (m *MAC) Verify(data, expected []byte) bool {
	return hmac.Equal(m.Sum(data), expected)
}

// ChainHash computes the hash binding an event to its predecessor:
// HMAC(previous_hash_or_empty || plaintext). previous is nil for the first
// event of a stream. plaintext is the serialized event before encryption;
// the chain is never computed over ciphertext.
func (m *MAC) ChainHash(previous, plaintext []byte) []byte {
	data := make([]byte, 0, len(previous)+len(plaintext))
	data = append(data, previous...)
	data = append(data, plaintext...)
	return m.Sum(data)
}

// VerifyChainHash reports whether expected is the chain hash for the given
// previous hash and plaintext, using a constant-time comparison.
func (m *MAC) VerifyChainHash(previous, plaintext, expected []byte) bool {
	return hmac.Equal(m.ChainHash(previous, plaintext), expected)
}

// Close wipes the MAC's key copy. The MAC must not be used afterwards.
func (m *MAC) Close() {
	if m == nil {
		return
	}
	Wipe(m.key)
	m.key = nil
}

// Equal compares two byte slices in constant time (no early-exit compare).
func Equal(a, b []byte) bool {
	return hmac.Equal(a, b)
}

// Wipe overwrites b with zeros. Use it on key material before releasing it.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Suite bundles the cipher and MAC the store needs. It rejects identical
// key material for the two keys so a compromised encryption key does not
// also forge the chain.
type Suite struct {
	Cipher *Cipher
	MAC    *MAC
}

// NewSuite builds a Suite from raw key material. Both keys are copied;
// Close wipes the copies. Keys are never logged or serialized.
func NewSuite(encryptionKey, macKey []byte) (*Suite, error) {
	if bytes.Equal(encryptionKey, macKey) {
		return nil, fmt.Errorf("crypto: encryption and mac keys must be distinct")
	}
	c, err := NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	m, err := NewMAC(macKey)
	if err != nil {
		c.Close()
		return nil, err
	}
	return &Suite{Cipher: c, MAC: m}, nil
}

// Close wipes both key copies.
func (s *Suite) Close() {
	if s == nil {
		return
	}
	s.Cipher.Close()
	s.MAC.Close()
}
