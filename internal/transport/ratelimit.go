package transport

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxBurstFrames caps how many bytes a single limiter reservation may cover:
// the byte bucket's burst never exceeds it, so Write splits a larger frame
// into chunks of at most this many bytes, each waited for separately.
const maxBurstFrames = 256 * 1024

// throttledWriter wraps an io.Writer with a byte-rate token bucket and an
// optional second, independent frame-rate token bucket. The sender consumer
// calls Write exactly once per already-framed message (send_pump.go never
// splits or coalesces frames), so consuming one frame-limiter token per
// Write call paces message throughput directly instead of only the raw
// byte count — a connection sending a flood of tiny Ping frames is bounded
// by frameLimiter even though it would barely register against a
// byte-per-second cap sized for payload-heavy traffic.
type throttledWriter struct {
	w            io.Writer
	ctx          context.Context
	byteLimiter  *rate.Limiter
	frameLimiter *rate.Limiter // nil when no frame-rate cap is configured
}

// newThrottledWriter wraps w with a token-bucket limiter capped at
// bytesPerSecond, and, if framesPerSecond > 0, a second bucket capping how
// many Write calls (frames) per second it accepts regardless of their
// size. A non-positive bytesPerSecond disables all throttling and returns
// w unchanged.
func newThrottledWriter(ctx context.Context, w io.Writer, bytesPerSecond int64, framesPerSecond int) io.Writer {
	if bytesPerSecond <= 0 {
		return w
	}
	burst := int(bytesPerSecond)
	if burst > maxBurstFrames {
		burst = maxBurstFrames
	}
	t := &throttledWriter{
		w:           w,
		ctx:         ctx,
		byteLimiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
	}
	if framesPerSecond > 0 {
		t.frameLimiter = rate.NewLimiter(rate.Limit(framesPerSecond), framesPerSecond)
	}
	return t
}

func (t *throttledWriter) Write(p []byte) (int, error) {
	if t.frameLimiter != nil {
		if err := t.frameLimiter.WaitN(t.ctx, 1); err != nil {
			return 0, err
		}
	}

	written := 0
	for len(p) > 0 {
		chunk := len(p)
		if chunk > t.byteLimiter.Burst() {
			chunk = t.byteLimiter.Burst()
		}
		if err := t.byteLimiter.WaitN(t.ctx, chunk); err != nil {
			return written, err
		}
		n, err := t.w.Write(p[:chunk])
		written += n
		if err != nil {
			return written, err
		}
		p = p[n:]
	}
	return written, nil
}
