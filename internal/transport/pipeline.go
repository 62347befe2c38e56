package transport

import "fmt"

// Compressor shrinks and restores a message's serialized bytes. Production
// wiring defaults to compress.ZstdCompressor; tests substitute an identity
// transform.
type Compressor interface {
	Compress([]byte) ([]byte, error)
	Decompress([]byte) ([]byte, error)
}

// Cipher encrypts and decrypts the compressed payload. Production wiring
// defaults to crypto.ChaCha20Cipher; tests substitute an identity
// transform.
type Cipher interface {
	Encrypt([]byte) ([]byte, error)
	Decrypt([]byte) ([]byte, error)
}

// Pipeline applies the fixed, non-negotiated compress/encrypt ordering on
// send and its exact inverse on receive.
type Pipeline struct {
	Compressor Compressor
	Cipher     Cipher
}

// Seal serializes msg through registry, compresses, then encrypts, ready to
// be handed to EncodeFrame.
func (p *Pipeline) Seal(registry *Registry, msg Message) ([]byte, error) {
	body, err := registry.Encode(msg)
	if err != nil {
		return nil, err
	}
	compressed, err := p.Compressor.Compress(body)
	if err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	encrypted, err := p.Cipher.Encrypt(compressed)
	if err != nil {
		return nil, fmt.Errorf("encrypting payload: %w", err)
	}
	return encrypted, nil
}

// Open reverses Seal: decrypt, decompress, deserialize. An error or an
// empty result from either Decrypt or Decompress is a pipeline error: Open
// returns ok=false with a nil error, telling the caller to drop the
// current frame without disconnecting. A non-nil error means the
// frame decrypted and decompressed fine but the registry could not
// deserialize it — a payload shorter than the tag field, or a recognized
// tag's body that fails to unmarshal — treated as fatal for the connection.
func (p *Pipeline) Open(registry *Registry, raw []byte) (msg Message, ok bool, err error) {
	decrypted, decErr := p.Cipher.Decrypt(raw)
	if decErr != nil || len(decrypted) == 0 {
		return nil, false, nil
	}
	decompressed, dcErr := p.Compressor.Decompress(decrypted)
	if dcErr != nil || len(decompressed) == 0 {
		return nil, false, nil
	}
	msg, err = registry.Decode(decompressed)
	if err != nil {
		return nil, false, err
	}
	return msg, true, nil
}
