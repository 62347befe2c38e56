package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meshwire/corewire/internal/logging"
)

// connKey identifies a Connection by the (network, address) tuple of its
// peer rather than by object identity, so lookups and dedup work the same
// way whether a Connection came from an Accept loop or a client Dial.
type connKey struct {
	network string
	address string
}

func keyFor(addr net.Addr) connKey {
	return connKey{network: addr.Network(), address: addr.String()}
}

// Server is the transport core's acceptor role: it owns the shared worker
// pool, buffer pool, message registry and pipeline, and the table of live
// connections keyed by peer (network, address).
type Server struct {
	// HeaderSize is always 3: the little-endian length-prefix width every
	// frame uses. Exported so application code can size read buffers
	// sensibly; the core itself does not let it vary.
	HeaderSize uint32

	// KeepAliveEnabled/KeepAliveTime/KeepAliveInterval mirror
	// config.KeepaliveConfig. KeepAliveInterval is accepted and logged
	// only: net.TCPConn exposes a single period, applied from
	// KeepAliveTime.
	KeepAliveEnabled  bool
	KeepAliveTime     time.Duration
	KeepAliveInterval time.Duration

	// Processing, when true, puts the server in batch mode: disconnected
	// connections stay in the connection table (for draining or
	// post-mortem inspection) instead of self-removing.
	Processing bool

	BytesReceived atomic.Int64
	BytesSent     atomic.Int64

	registry   *Registry
	pipeline   *Pipeline
	workerPool *WorkerPool
	bufferPool BufferPool
	hooks      EventHooks
	logger     *slog.Logger

	maxQueuedReads int
	maxQueuedSends int
	sendQueueWait  time.Duration

	metrics *Metrics

	sessionLogDir           string
	connSeq                 atomic.Int64
	sendRateBytesPerSecond  int64
	sendRateFramesPerSecond int

	mu    sync.Mutex
	conns map[connKey]*Connection
}

// ServerOptions bundles everything NewServer needs to assemble a Server.
type ServerOptions struct {
	Registry   *Registry
	Pipeline   *Pipeline
	WorkerPool *WorkerPool
	BufferPool BufferPool
	Hooks      EventHooks
	Logger     *slog.Logger

	MaxQueuedReads int
	MaxQueuedSends int
	SendQueueWait  time.Duration

	KeepAliveEnabled  bool
	KeepAliveTime     time.Duration
	KeepAliveInterval time.Duration

	Metrics *Metrics

	// SessionLogDir, if non-empty, turns on a dedicated log file per
	// connection under {SessionLogDir}/{network}/{address}/{connID}.log.
	SessionLogDir string

	// SendRateBytesPerSecond caps each connection's outbound byte rate.
	// Zero disables throttling.
	SendRateBytesPerSecond int64

	// SendRateFramesPerSecond additionally caps each connection's outbound
	// frame rate, independent of frame size. Zero disables the frame-rate
	// cap even if SendRateBytesPerSecond is set.
	SendRateFramesPerSecond int
}

// NewServer builds a Server from opts. Call Listen to start accepting.
func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		HeaderSize:        HeaderSize,
		KeepAliveEnabled:  opts.KeepAliveEnabled,
		KeepAliveTime:     opts.KeepAliveTime,
		KeepAliveInterval: opts.KeepAliveInterval,
		registry:          opts.Registry,
		pipeline:          opts.Pipeline,
		workerPool:        opts.WorkerPool,
		bufferPool:        opts.BufferPool,
		hooks:             opts.Hooks,
		logger:            logger,
		maxQueuedReads:    opts.MaxQueuedReads,
		maxQueuedSends:    opts.MaxQueuedSends,
		sendQueueWait:           opts.SendQueueWait,
		metrics:                 opts.Metrics,
		sessionLogDir:           opts.SessionLogDir,
		sendRateBytesPerSecond:  opts.SendRateBytesPerSecond,
		sendRateFramesPerSecond: opts.SendRateFramesPerSecond,
		conns:                   make(map[connKey]*Connection),
	}
}

// Listen freezes the message registry (no further Register calls are
// allowed once connections can arrive), binds addr, and accepts
// connections until ctx is cancelled or the listener errors. TCP keepalive
// is configured on the raw socket before TLS wraps it, matching where a
// plain TCP control channel would configure it.
func (s *Server) Listen(ctx context.Context, addr string, tlsConfig *tls.Config) error {
	s.registry.Freeze()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.logger.Info("listening", "addr", addr)
	for {
		raw, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}
		s.configureKeepalive(raw)

		var conn net.Conn = raw
		if tlsConfig != nil {
			conn = tls.Server(raw, tlsConfig)
		}
		s.accept(conn)
	}
}

func (s *Server) accept(conn net.Conn) {
	peer := peerLabel(conn.RemoteAddr())
	key := keyFor(conn.RemoteAddr())
	connID := strconv.FormatInt(s.connSeq.Add(1), 10)

	logger, closer, logPath, err := logging.NewSessionLogger(s.logger, s.sessionLogDir, logging.ConnKey{Network: key.network, Address: key.address}, connID)
	if err != nil {
		s.logger.Warn("session log setup failed, continuing without one", "peer", peer, "err", err)
		logger, closer = s.logger, noopCloser{}
	} else if logPath != "" {
		logger = logger.With("peer", peer, "conn_id", connID)
	}

	newConnection(s, conn, logger, peer, connID, closer)
}

// peerLabel turns a net.Addr into a filesystem-safe directory component.
func peerLabel(addr net.Addr) string {
	return strings.NewReplacer(":", "_", "/", "_").Replace(addr.String())
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }

func (s *Server) configureKeepalive(conn net.Conn) {
	if !s.KeepAliveEnabled {
		return
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	tcpConn.SetKeepAlive(true)
	tcpConn.SetKeepAlivePeriod(s.KeepAliveTime)
	s.logger.Debug("tcp keepalive configured", "time", s.KeepAliveTime, "interval", s.KeepAliveInterval)
}

func (s *Server) trackConnection(c *Connection) {
	s.mu.Lock()
	s.conns[c.key] = c
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.connectionsTotal.Inc()
		s.metrics.connectionsActive.Inc()
	}
}

// RemoveConnection drops c from the connection table. Connection.Disconnect
// calls this unless the server is in Processing (batch) mode.
func (s *Server) RemoveConnection(c *Connection) {
	s.mu.Lock()
	delete(s.conns, c.key)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.connectionsActive.Dec()
	}
}

// ConnectionCount returns the number of tracked connections.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Connections returns a snapshot slice of the currently tracked connections.
func (s *Server) Connections() []*Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	return out
}

func (s *Server) recordBytesReceived(n int64) {
	s.BytesReceived.Add(n)
	if s.metrics != nil {
		s.metrics.bytesReceived.Add(float64(n))
	}
}

// recordFrameDropped counts a discarded frame: a framing error surfaced by
// the decoder (the connection is then disconnected), or a pipeline drop (an
// empty Decrypt/Decompress result, which does not disconnect).
func (s *Server) recordFrameDropped() {
	if s.metrics != nil {
		s.metrics.framesDropped.Inc()
	}
}

func (s *Server) recordBytesSent(n int64) {
	s.BytesSent.Add(n)
	if s.metrics != nil {
		s.metrics.bytesSent.Add(float64(n))
	}
}

// Dial establishes a client-side Connection: it dials addr, configures TCP
// keepalive on the raw socket, performs the TLS handshake, and wires the
// result into the same producer/consumer machinery a server-accepted
// connection uses.
func (s *Server) Dial(ctx context.Context, network, addr string, tlsConfig *tls.Config) (*Connection, error) {
	dialer := &net.Dialer{Timeout: 0}
	raw, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	s.configureKeepalive(raw)

	conn := tls.Client(raw, tlsConfig)
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", addr, err)
	}

	peer := peerLabel(raw.RemoteAddr())
	key := keyFor(raw.RemoteAddr())
	connID := strconv.FormatInt(s.connSeq.Add(1), 10)
	logger, closer, _, err := logging.NewSessionLogger(s.logger, s.sessionLogDir, logging.ConnKey{Network: key.network, Address: key.address}, connID)
	if err != nil {
		logger, closer = s.logger, noopCloser{}
	}

	return newConnection(s, conn, logger, peer, connID, closer), nil
}
