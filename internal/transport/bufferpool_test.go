package transport

import "testing"

func TestFixedBufferPool_AcquireReturnsCorrectSize(t *testing.T) {
	pool := NewFixedBufferPool(64 * 1024)
	buf := pool.Acquire()
	if len(buf) != 64*1024 {
		t.Fatalf("expected 64KiB buffer, got %d bytes", len(buf))
	}
}

func TestFixedBufferPool_ReleaseThenAcquireReuses(t *testing.T) {
	pool := NewFixedBufferPool(4096)
	buf := pool.Acquire()
	buf[0] = 0xAB
	pool.Release(buf)

	reused := pool.Acquire()
	if len(reused) != 4096 {
		t.Fatalf("expected reused buffer of 4096 bytes, got %d", len(reused))
	}
}

func TestFixedBufferPool_ReleaseDropsMisSizedBuffer(t *testing.T) {
	pool := NewFixedBufferPool(1024)
	// Should not panic and should simply be discarded.
	pool.Release(make([]byte, 16))
}
