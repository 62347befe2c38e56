package transport

// runSender is the send consumer, dispatched onto the shared WorkerPool the
// moment Send transitions sending from false to true. It drains the send
// queue, applies compress-then-encrypt-then-frame to each already-tag-framed
// payload, and issues a single Write per frame. The frame itself is built
// into a pooled buffer acquired once per consumer run rather than once per
// message, so a connection sending many small messages back to back doesn't
// allocate a fresh header+payload slice for every one of them.
func (c *Connection) runSender() {
	buf := framePool.Get()
	defer framePool.Put(buf)

	for {
		item, ok := c.sendQueue.PopOrClear(&c.sending)
		if !ok {
			return
		}
		if !c.connected.Load() {
			c.sending.Store(false)
			return
		}

		compressed, err := c.pipeline.Compressor.Compress(item.raw)
		if err != nil {
			c.sending.Store(false)
			c.shutdown(false)
			return
		}
		encrypted, err := c.pipeline.Cipher.Encrypt(compressed)
		if err != nil {
			c.sending.Store(false)
			c.shutdown(false)
			return
		}
		frame, err := EncodeFrameInto(buf, encrypted)
		if err != nil {
			c.sending.Store(false)
			c.shutdown(false)
			return
		}

		if _, err := c.sendWriter.Write(frame); err != nil {
			c.sending.Store(false)
			c.shutdown(false)
			return
		}
		c.server.recordBytesSent(int64(len(frame)))
	}
}
