package transport

import (
	"bytes"
	"testing"
)

func framesFor(t *testing.T, payloads ...[]byte) []byte {
	t.Helper()
	var out []byte
	for _, p := range payloads {
		f, err := EncodeFrame(p)
		if err != nil {
			t.Fatalf("EncodeFrame: %v", err)
		}
		out = append(out, f...)
	}
	return out
}

// S1: exact chunk — one frame delivered whole yields one emitted payload.
func TestFrameDecoder_ExactChunk(t *testing.T) {
	payload := []byte("ping-1")
	stream := framesFor(t, payload)

	var got [][]byte
	d := NewFrameDecoder()
	if err := d.Decode(stream, func(p []byte) {
		cp := make([]byte, len(p))
		copy(cp, p)
		got = append(got, cp)
	}); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(got) != 1 || !bytes.Equal(got[0], payload) {
		t.Fatalf("expected one payload %q, got %v", payload, got)
	}
}

// S2: split header — the 3-byte header itself is split across two chunks.
func TestFrameDecoder_SplitHeader(t *testing.T) {
	payload := []byte("ping-1")
	stream := framesFor(t, payload)

	var got [][]byte
	d := NewFrameDecoder()
	emit := func(p []byte) {
		cp := make([]byte, len(p))
		copy(cp, p)
		got = append(got, cp)
	}

	if err := d.Decode(stream[:2], emit); err != nil {
		t.Fatalf("Decode chunk 1: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no emission yet, got %v", got)
	}
	if err := d.Decode(stream[2:], emit); err != nil {
		t.Fatalf("Decode chunk 2: %v", err)
	}

	if len(got) != 1 || !bytes.Equal(got[0], payload) {
		t.Fatalf("expected one payload %q, got %v", payload, got)
	}
}

// S3: split payload — a 100-byte payload delivered as 1-byte chunks.
func TestFrameDecoder_SplitPayloadByteByByte(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 100)
	stream := framesFor(t, payload)

	var got [][]byte
	d := NewFrameDecoder()
	emit := func(p []byte) {
		cp := make([]byte, len(p))
		copy(cp, p)
		got = append(got, cp)
	}

	for i := 0; i < len(stream); i++ {
		if err := d.Decode(stream[i:i+1], emit); err != nil {
			t.Fatalf("Decode byte %d: %v", i, err)
		}
	}

	if len(got) != 1 || !bytes.Equal(got[0], payload) {
		t.Fatalf("expected one 100-byte payload, got %d payloads", len(got))
	}
}

// S4: two frames concatenated into a single chunk delivery.
func TestFrameDecoder_TwoFramesOneChunk(t *testing.T) {
	p1 := []byte("ping-1")
	p2 := []byte("ping-2")
	stream := framesFor(t, p1, p2)

	var got [][]byte
	d := NewFrameDecoder()
	if err := d.Decode(stream, func(p []byte) {
		cp := make([]byte, len(p))
		copy(cp, p)
		got = append(got, cp)
	}); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected two payloads, got %d", len(got))
	}
	if !bytes.Equal(got[0], p1) || !bytes.Equal(got[1], p2) {
		t.Fatalf("expected %q then %q, got %q then %q", p1, p2, got[0], got[1])
	}
}

// S5: a zero-length header is a framing error.
func TestFrameDecoder_ZeroLengthHeaderIsFramingError(t *testing.T) {
	stream := []byte{0x00, 0x00, 0x00}

	d := NewFrameDecoder()
	err := d.Decode(stream, func([]byte) {
		t.Fatal("expected no emission on framing error")
	})
	if err != ErrFramingError {
		t.Fatalf("expected ErrFramingError, got %v", err)
	}
}

func TestFrameDecoder_MultiFrameSplitAcrossManyChunks(t *testing.T) {
	p1 := []byte("alpha")
	p2 := []byte("beta")
	p3 := []byte("gamma-message-body")
	stream := framesFor(t, p1, p2, p3)

	var got [][]byte
	d := NewFrameDecoder()
	emit := func(p []byte) {
		cp := make([]byte, len(p))
		copy(cp, p)
		got = append(got, cp)
	}

	// Deliver in irregular, arbitrary-size chunks.
	chunkSizes := []int{1, 4, 2, 7, 3, 100}
	offset := 0
	for _, sz := range chunkSizes {
		if offset >= len(stream) {
			break
		}
		end := offset + sz
		if end > len(stream) {
			end = len(stream)
		}
		if err := d.Decode(stream[offset:end], emit); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		offset = end
	}
	if offset < len(stream) {
		if err := d.Decode(stream[offset:], emit); err != nil {
			t.Fatalf("Decode remainder: %v", err)
		}
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 payloads, got %d: %v", len(got), got)
	}
	for i, want := range [][]byte{p1, p2, p3} {
		if !bytes.Equal(got[i], want) {
			t.Errorf("payload %d: expected %q, got %q", i, want, got[i])
		}
	}
}

func TestEncodeFrame_EmptyPayloadRejected(t *testing.T) {
	if _, err := EncodeFrame(nil); err == nil {
		t.Fatal("expected error encoding an empty payload")
	}
}

func TestEncodeFrame_HeaderIsLittleEndian(t *testing.T) {
	payload := make([]byte, 300) // header must be 0x2C 0x01 0x00
	f, err := EncodeFrame(payload)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if f[0] != 0x2C || f[1] != 0x01 || f[2] != 0x00 {
		t.Fatalf("expected little-endian header [0x2C 0x01 0x00], got [%#x %#x %#x]", f[0], f[1], f[2])
	}
}
