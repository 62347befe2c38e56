package transport

import (
	"testing"

	"github.com/meshwire/corewire/internal/compress"
	"github.com/meshwire/corewire/internal/crypto"
	"github.com/meshwire/corewire/internal/wire"
	"golang.org/x/crypto/chacha20poly1305"
)

type identityCompressor struct{}

func (identityCompressor) Compress(b []byte) ([]byte, error)   { return b, nil }
func (identityCompressor) Decompress(b []byte) ([]byte, error) { return b, nil }

type identityCipher struct{}

func (identityCipher) Encrypt(b []byte) ([]byte, error) { return b, nil }
func (identityCipher) Decrypt(b []byte) ([]byte, error) { return b, nil }

type emptyingCipher struct{}

func (emptyingCipher) Encrypt(b []byte) ([]byte, error) { return b, nil }
func (emptyingCipher) Decrypt([]byte) ([]byte, error)   { return nil, nil }

// Invariant 2: deserialize(decompress(decrypt(encrypt(compress(serialize(m)))))) == m.
func TestPipeline_RoundTripWithIdentityTransforms(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&wire.TextMessage{})

	p := &Pipeline{Compressor: identityCompressor{}, Cipher: identityCipher{}}

	in := &wire.TextMessage{Body: "round trip"}
	sealed, err := p.Seal(registry, in)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	out, ok, err := p.Open(registry, sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !ok {
		t.Fatal("expected Open to succeed")
	}
	got, isText := out.(*wire.TextMessage)
	if !isText {
		t.Fatalf("expected *wire.TextMessage, got %T", out)
	}
	if got.Body != in.Body {
		t.Errorf("expected body %q, got %q", in.Body, got.Body)
	}
}

func TestPipeline_RoundTripWithProductionCompressorAndCipher(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&wire.BinaryMessage{})

	zstd, err := compress.NewZstdCompressor()
	if err != nil {
		t.Fatalf("NewZstdCompressor: %v", err)
	}
	defer zstd.Close()

	key := make([]byte, chacha20poly1305.KeySize)
	for i := range key {
		key[i] = byte(i * 7)
	}
	cipher, err := crypto.NewChaCha20Cipher(key)
	if err != nil {
		t.Fatalf("NewChaCha20Cipher: %v", err)
	}

	p := &Pipeline{Compressor: zstd, Cipher: cipher}

	in := &wire.BinaryMessage{Name: "chunk-1", Data: []byte("some binary payload bytes")}
	sealed, err := p.Seal(registry, in)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	out, ok, err := p.Open(registry, sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !ok {
		t.Fatal("expected Open to succeed")
	}
	got, isBinary := out.(*wire.BinaryMessage)
	if !isBinary {
		t.Fatalf("expected *wire.BinaryMessage, got %T", out)
	}
	if got.Name != in.Name || string(got.Data) != string(in.Data) {
		t.Errorf("expected %+v, got %+v", in, got)
	}
}

// A pipeline error (empty output from Decrypt) drops the frame silently:
// ok=false, err=nil.
func TestPipeline_EmptyDecryptOutputIsSilentlyDropped(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&wire.TextMessage{})

	p := &Pipeline{Compressor: identityCompressor{}, Cipher: emptyingCipher{}}

	out, ok, err := p.Open(registry, []byte("anything"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for an empty pipeline result")
	}
	if out != nil {
		t.Fatalf("expected nil message, got %v", out)
	}
}

// A known tag whose body fails to unmarshal is a transport-abort: a non-nil
// error, not a silent drop.
func TestPipeline_SchemaMismatchOnKnownTagIsFatal(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&wire.TextMessage{})

	p := &Pipeline{Compressor: identityCompressor{}, Cipher: identityCipher{}}

	// Tag 2 is TextMessage; corrupt the body so proto.Unmarshal fails.
	malformed := []byte{0x00, 0x00, 0x00, 0x02, 0xFF, 0xFF, 0xFF}

	_, ok, err := p.Open(registry, malformed)
	if ok {
		t.Fatal("expected ok=false on schema mismatch")
	}
	if err == nil {
		t.Fatal("expected a non-nil error for a known-tag unmarshal failure")
	}
}
