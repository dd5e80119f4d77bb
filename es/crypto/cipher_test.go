package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func testKey(b byte) []byte {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = b
	}
	return key
}

func TestNewCipher_KeyLength(t *testing.T) {
	tests := []struct {
		name    string
		keyLen  int
		wantErr bool
	}{
		{"too short", 16, true},
		{"off by one", 31, true},
		{"exact", 32, false},
		{"too long", 33, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCipher(make([]byte, tt.keyLen))
			if (err != nil) != tt.wantErr {
				t.Errorf("NewCipher() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCipher_RoundTrip(t *testing.T) {
	c, err := NewCipher(testKey(0x11))
	if err != nil {
		t.Fatalf("NewCipher() failed: %v", err)
	}
	defer c.Close()

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty payload", []byte{}},
		{"short payload", []byte("x")},
		{"json payload", []byte(`{"amount":1050,"currency":"USD"}`)},
		{"binary payload", bytes.Repeat([]byte{0x00, 0xff}, 512)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := c.Encrypt(tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() failed: %v", err)
			}
			if len(blob) != NonceSize+TagSize+len(tt.plaintext) {
				t.Errorf("sealed length = %d, want %d", len(blob), NonceSize+TagSize+len(tt.plaintext))
			}

			got, err := c.Decrypt(blob)
			if err != nil {
				t.Fatalf("Decrypt() failed: %v", err)
			}
			if !bytes.Equal(got, tt.plaintext) {
				t.Errorf("Decrypt() = %q, want %q", got, tt.plaintext)
			}
		})
	}
}

func TestCipher_NonceUniqueness(t *testing.T) {
	c, err := NewCipher(testKey(0x22))
	if err != nil {
		t.Fatalf("NewCipher() failed: %v", err)
	}
	defer c.Close()

	plaintext := []byte("same payload twice")
	first, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}
	second, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}

	if bytes.Equal(first[:NonceSize], second[:NonceSize]) {
		t.Error("two encryptions produced the same nonce")
	}
	if bytes.Equal(first, second) {
		t.Error("two encryptions produced identical blobs")
	}
}

func TestCipher_DecryptRejectsTruncatedBlob(t *testing.T) {
	c, err := NewCipher(testKey(0x33))
	if err != nil {
		t.Fatalf("NewCipher() failed: %v", err)
	}
	defer c.Close()

	tests := []struct {
		name string
		blob []byte
	}{
		{"nil blob", nil},
		{"empty blob", []byte{}},
		{"below overhead", make([]byte, NonceSize+TagSize-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decrypt(tt.blob)
			if !errors.Is(err, ErrAuthenticationFailed) {
				t.Errorf("Decrypt() error = %v, want ErrAuthenticationFailed", err)
			}
		})
	}
}

func TestCipher_DecryptRejectsTamperedBlob(t *testing.T) {
	c, err := NewCipher(testKey(0x44))
	if err != nil {
		t.Fatalf("NewCipher() failed: %v", err)
	}
	defer c.Close()

	blob, err := c.Encrypt([]byte("account transfer of 10.50 USD"))
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}

	// Flip one bit in each region of the sealed layout.
	offsets := map[string]int{
		"nonce":      0,
		"tag":        NonceSize,
		"ciphertext": NonceSize + TagSize,
	}
	for name, offset := range offsets {
		t.Run(name, func(t *testing.T) {
			tampered := make([]byte, len(blob))
			copy(tampered, blob)
			tampered[offset] ^= 0x01

			_, err := c.Decrypt(tampered)
			if !errors.Is(err, ErrAuthenticationFailed) {
				t.Errorf("Decrypt() error = %v, want ErrAuthenticationFailed", err)
			}
		})
	}
}

func TestCipher_WrongKeyFailsAuthentication(t *testing.T) {
	sealer, err := NewCipher(testKey(0x55))
	if err != nil {
		t.Fatalf("NewCipher() failed: %v", err)
	}
	defer sealer.Close()

	opener, err := NewCipher(testKey(0x66))
	if err != nil {
		t.Fatalf("NewCipher() failed: %v", err)
	}
	defer opener.Close()

	blob, err := sealer.Encrypt([]byte("sealed under another key"))
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}

	if _, err := opener.Decrypt(blob); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Decrypt() error = %v, want ErrAuthenticationFailed", err)
	}
}

func TestCipher_CloseWipesKey(t *testing.T) {
	key := testKey(0x77)
	c, err := NewCipher(key)
	if err != nil {
		t.Fatalf("NewCipher() failed: %v", err)
	}

	held := c.key
	c.Close()

	for i, b := range held {
		if b != 0 {
			t.Fatalf("key byte %d not wiped", i)
		}
	}
	if _, err := c.Encrypt([]byte("x")); err == nil {
		t.Error("Encrypt() after Close() should fail")
	}
}

func TestCipher_KeyIsCopied(t *testing.T) {
	key := testKey(0x88)
	c, err := NewCipher(key)
	if err != nil {
		t.Fatalf("NewCipher() failed: %v", err)
	}
	defer c.Close()

	// Mutating the caller's key must not affect the cipher.
	key[0] ^= 0xff
	blob, err := c.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}
	if _, err := c.Decrypt(blob); err != nil {
		t.Errorf("Decrypt() failed after caller mutated key: %v", err)
	}
}
