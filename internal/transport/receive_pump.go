package transport

// receiveLoop is the receive producer: a single goroutine started by
// newConnection that blocks on Read against the connection's pooled
// buffer, copies each chunk onto the chunk queue, and dispatches the
// receive consumer if it isn't already running. Go's blocking-read
// goroutine stands in for the callback a kernel I/O completion port would
// otherwise deliver on.
func (c *Connection) receiveLoop() {
	if len(c.recvBuf) == 0 {
		// The BufferPool handed out no buffer: a resource error, fatal for
		// the connection.
		c.shutdown(false)
		return
	}
	for {
		n, err := c.conn.Read(c.recvBuf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, c.recvBuf[:n])
			c.server.recordBytesReceived(int64(n))

			if pushErr := c.chunkQueue.Push(chunk, 0); pushErr != nil {
				return
			}
			if c.reading.CompareAndSwap(false, true) {
				c.server.workerPool.Dispatch(c.runReceiveConsumer)
			}
		}
		if err != nil {
			// Read failure, including a clean peer close reported as
			// io.EOF, ends the connection without a deliberate-shutdown
			// marker: the session log (if any) is kept for inspection.
			c.shutdown(false)
			return
		}
	}
}

// runReceiveConsumer is the receive consumer: it drains the chunk queue
// through the frame decoder, opens each completed frame through the
// pipeline and registry, and fires OnRead. A framing error (payload length
// decodes to zero) disconnects the connection rather than resyncing.
func (c *Connection) runReceiveConsumer() {
	for {
		chunk, ok := c.chunkQueue.PopOrClear(&c.reading)
		if !ok {
			return
		}

		err := c.decoder.Decode(chunk, c.handleFrame)
		if err != nil {
			c.server.recordFrameDropped()
			c.shutdown(false)
			return
		}
	}
}

func (c *Connection) handleFrame(payload []byte) {
	msg, ok, err := c.pipeline.Open(c.registry, payload)
	if err != nil {
		// Payload shorter than the tag field, or a known tag whose body
		// failed to unmarshal: the pipeline is no longer trustworthy for
		// this connection.
		c.shutdown(false)
		return
	}
	if !ok {
		// Decrypt or decompress produced nothing: drop the frame without
		// disconnecting.
		c.logger.Warn("dropping frame: decrypt or decompress produced no output")
		c.server.recordFrameDropped()
		return
	}
	if c.hooks.OnRead != nil {
		c.hooks.OnRead(c, msg)
	}
}
