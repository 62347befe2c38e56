// Package crypto provides the authenticated-encryption step of the wire
// pipeline, applied after compression and before framing on send, and
// undone after unframing and before decompression on receive.
package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher encrypts and decrypts the compressed wire payload. Implementations
// must be safe for concurrent use: a single Connection's send and receive
// directions run on independent goroutines and may call Encrypt/Decrypt
// concurrently with each other (never with themselves).
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// ChaCha20Cipher implements Cipher with ChaCha20-Poly1305 AEAD. Each call to
// Encrypt generates a fresh random nonce and prepends it to the returned
// ciphertext; Decrypt expects that same layout.
type ChaCha20Cipher struct {
	aead cipherAEAD
}

type cipherAEAD interface {
	NonceSize() int
	Overhead() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// NewChaCha20Cipher builds a ChaCha20Cipher from a 32-byte key, typically loaded
// from the pipeline.key_file configured on both ends of a connection.
func NewChaCha20Cipher(key []byte) (*ChaCha20Cipher, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("initializing chacha20poly1305: %w", err)
	}
	return &ChaCha20Cipher{aead: aead}, nil
}

func (c *ChaCha20Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+c.aead.Overhead())
	out = append(out, nonce...)
	return c.aead.Seal(out, nonce, plaintext, nil), nil
}

func (c *ChaCha20Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext shorter than nonce size %d", nonceSize)
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting frame: %w", err)
	}
	return plaintext, nil
}

// LoadKeyFile reads a 32-byte raw key from path.
func LoadKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	if len(data) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("key file %s must contain exactly %d bytes, got %d", path, chacha20poly1305.KeySize, len(data))
	}
	return data, nil
}
