package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meshwire/corewire/internal/logging"
)

// queuedSend is what Send enqueues: the already tag-framed, not yet
// compressed or encrypted bytes, paired with the original Message so
// OnWrite can report it.
type queuedSend struct {
	msg Message
	raw []byte
}

// Connection is one accepted (or dialed) socket's full-duplex state
// machine: a receive producer/consumer pair, a send producer/consumer
// pair, and its lifecycle bookkeeping.
type Connection struct {
	server     *Server
	conn       net.Conn
	sendWriter io.Writer
	key        connKey

	ctx    context.Context
	cancel context.CancelFunc

	connectedSince time.Time
	connected      atomic.Bool

	stateMu   sync.Mutex
	userState any

	registry *Registry
	pipeline *Pipeline
	hooks    EventHooks
	logger   *slog.Logger

	recvBuf    []byte
	chunkQueue *boundedQueue[[]byte]
	decoder    *FrameDecoder
	reading    atomic.Bool

	sendMu        sync.Mutex
	sendQueue     *boundedQueue[queuedSend]
	sending       atomic.Bool
	sendQueueWait time.Duration

	sessionLogDir    string
	peerLabel        string
	connID           string
	sessionLogCloser io.Closer
}

// newConnection wires a freshly accepted or dialed net.Conn into the
// transport core, acquires its receive buffer, starts its receive
// producer, and fires OnStateChange(true).
func newConnection(server *Server, conn net.Conn, logger *slog.Logger, peer, connID string, sessionLogCloser io.Closer) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		server:           server,
		conn:             conn,
		ctx:              ctx,
		cancel:           cancel,
		key:              keyFor(conn.RemoteAddr()),
		connectedSince:   time.Now(),
		registry:         server.registry,
		pipeline:         server.pipeline,
		hooks:            server.hooks,
		logger:           logger,
		recvBuf:          server.bufferPool.Acquire(),
		chunkQueue:       newBoundedQueue[[]byte](server.maxQueuedReads),
		decoder:          NewFrameDecoder(),
		sendQueue:        newBoundedQueue[queuedSend](server.maxQueuedSends),
		sendQueueWait:    server.sendQueueWait,
		sessionLogDir:    server.sessionLogDir,
		peerLabel:        peer,
		connID:           connID,
		sessionLogCloser: sessionLogCloser,
	}
	c.sendWriter = newThrottledWriter(ctx, conn, server.sendRateBytesPerSecond, server.sendRateFramesPerSecond)
	c.connected.Store(true)

	server.trackConnection(c)
	if c.hooks.OnStateChange != nil {
		c.hooks.OnStateChange(c, true)
	}

	go c.receiveLoop()
	return c
}

// RemoteAddr returns the peer's network address.
func (c *Connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// ConnectedSince returns when this connection was established.
func (c *Connection) ConnectedSince() time.Time { return c.connectedSince }

// IsConnected reports whether the connection is still live.
func (c *Connection) IsConnected() bool { return c.connected.Load() }

// UserState returns the opaque, core-agnostic state slot an application can
// attach to a connection.
func (c *Connection) UserState() any {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.userState
}

// SetUserState replaces the opaque state slot.
func (c *Connection) SetUserState(v any) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.userState = v
}

// Send serializes msg under the send queue's lock (so submission order
// becomes wire order for this caller), enqueues it, fires OnWrite at
// submission time, and starts the sender consumer if it isn't already
// running. It returns ErrQueueFull if the send queue stays at capacity for
// the configured SendQueueWait window.
func (c *Connection) Send(msg Message) error {
	if !c.connected.Load() {
		return ErrConnectionClosed
	}

	c.sendMu.Lock()
	raw, err := c.registry.Encode(msg)
	if err != nil {
		c.sendMu.Unlock()
		return err
	}
	err = c.sendQueue.Push(queuedSend{msg: msg, raw: raw}, c.sendQueueWait)
	c.sendMu.Unlock()
	if err != nil {
		return err
	}

	if c.hooks.OnWrite != nil {
		c.hooks.OnWrite(c, msg, len(raw), raw)
	}

	if c.sending.CompareAndSwap(false, true) {
		c.server.workerPool.Dispatch(c.runSender)
	}
	return nil
}

// SendBlocking submits msg then polls every 10ms until the sender consumer
// has drained the queue, for callers needing write ordering relative to a
// subsequent Disconnect.
func (c *Connection) SendBlocking(msg Message) error {
	if err := c.Send(msg); err != nil {
		return err
	}
	for c.sending.Load() {
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

// Disconnect closes the connection as a deliberate, application-initiated
// shutdown: its per-connection log file (if any) is removed rather than
// kept, since nothing about the session needs investigating afterward.
func (c *Connection) Disconnect() {
	c.shutdown(true)
}

// shutdown is idempotent: it closes the socket, releases the receive
// buffer, clears the user state slot, and fires OnStateChange(false)
// exactly once. If the parent Server is not in batch Processing mode, the
// connection removes itself from the server's connection table. clean
// distinguishes a deliberate Disconnect from a read/write failure: only a
// clean shutdown removes the session log file afterward.
func (c *Connection) shutdown(clean bool) {
	if !c.connected.CompareAndSwap(true, false) {
		return
	}

	c.cancel()
	c.conn.Close()
	c.chunkQueue.Close()
	c.sendQueue.Close()

	if c.recvBuf != nil {
		c.server.bufferPool.Release(c.recvBuf)
		c.recvBuf = nil
	}
	c.SetUserState(nil)

	if c.sessionLogCloser != nil {
		c.sessionLogCloser.Close()
	}
	if clean {
		logging.RemoveSessionLog(c.sessionLogDir, logging.ConnKey{Network: c.key.network, Address: c.key.address}, c.connID)
	}

	if c.hooks.OnStateChange != nil {
		c.hooks.OnStateChange(c, false)
	}

	if !c.server.Processing {
		c.server.RemoveConnection(c)
	}
}

// ErrConnectionClosed is returned by Send/SendBlocking once the connection
// has been disconnected.
var ErrConnectionClosed = errors.New("transport: connection closed")
