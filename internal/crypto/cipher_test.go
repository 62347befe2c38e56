package crypto

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/chacha20poly1305"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, chacha20poly1305.KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestChaCha20Cipher_RoundTrip(t *testing.T) {
	c, err := NewChaCha20Cipher(testKey(t))
	if err != nil {
		t.Fatalf("NewChaCha20Cipher: %v", err)
	}

	plaintext := []byte("the quick brown fox jumps over the lazy dog")
	ciphertext, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(ciphertext, plaintext) {
		t.Fatal("ciphertext must differ from plaintext")
	}

	decrypted, err := c.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("expected %q, got %q", plaintext, decrypted)
	}
}

func TestChaCha20Cipher_DistinctNoncePerCall(t *testing.T) {
	c, err := NewChaCha20Cipher(testKey(t))
	if err != nil {
		t.Fatalf("NewChaCha20Cipher: %v", err)
	}

	plaintext := []byte("same message twice")
	a, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("expected distinct ciphertexts for repeated encryption of the same plaintext")
	}
}

func TestChaCha20Cipher_TamperedCiphertextFailsToDecrypt(t *testing.T) {
	c, err := NewChaCha20Cipher(testKey(t))
	if err != nil {
		t.Fatalf("NewChaCha20Cipher: %v", err)
	}

	ciphertext, err := c.Encrypt([]byte("authenticated payload"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	ciphertext[len(ciphertext)-1] ^= 0xFF

	if _, err := c.Decrypt(ciphertext); err == nil {
		t.Fatal("expected decryption of tampered ciphertext to fail")
	}
}

func TestChaCha20Cipher_ShortCiphertext(t *testing.T) {
	c, err := NewChaCha20Cipher(testKey(t))
	if err != nil {
		t.Fatalf("NewChaCha20Cipher: %v", err)
	}

	if _, err := c.Decrypt([]byte("short")); err == nil {
		t.Fatal("expected error decrypting ciphertext shorter than nonce size")
	}
}

func TestNewChaCha20Cipher_InvalidKeySize(t *testing.T) {
	if _, err := NewChaCha20Cipher([]byte("too short")); err == nil {
		t.Fatal("expected error for invalid key size")
	}
}

func TestLoadKeyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.key")
	key := testKey(t)
	if err := os.WriteFile(path, key, 0600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}

	loaded, err := LoadKeyFile(path)
	if err != nil {
		t.Fatalf("LoadKeyFile: %v", err)
	}
	if !bytes.Equal(loaded, key) {
		t.Error("loaded key does not match written key")
	}
}

func TestLoadKeyFile_WrongSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.key")
	if err := os.WriteFile(path, []byte("too short"), 0600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}

	if _, err := LoadKeyFile(path); err == nil {
		t.Fatal("expected error for wrong key size")
	}
}
