package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meshwire/corewire/internal/compress"
	"github.com/meshwire/corewire/internal/config"
	"github.com/meshwire/corewire/internal/crypto"
	"github.com/meshwire/corewire/internal/logging"
	"github.com/meshwire/corewire/internal/pki"
	"github.com/meshwire/corewire/internal/transport"
	"github.com/meshwire/corewire/internal/wire"
)

func main() {
	configPath := flag.String("config", "/etc/corewire/client.yaml", "path to client config file")
	message := flag.String("send", "", "optional text message to send once connected")
	flag.Parse()

	cfg, err := config.LoadClientConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.FilePath, logging.FileRotation{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger, *message); err != nil {
		logger.Error("client error", "error", err)
		os.Exit(1)
	}
}

// run dials the server with retry/backoff governed by cfg.Dial, sends an
// optional one-off text message, then blocks until ctx is cancelled or the
// connection drops.
func run(ctx context.Context, cfg *config.ClientConfig, logger *slog.Logger, message string) error {
	tlsConfig, err := pki.NewClientTLSConfig(cfg.TLS.CACert, cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		return fmt.Errorf("building client TLS config: %w", err)
	}

	registry := transport.NewRegistry()
	registry.Register(&wire.Ping{})
	registry.Register(&wire.Pong{})
	registry.Register(&wire.Ack{})
	registry.Register(&wire.TextMessage{})
	registry.Register(&wire.BinaryMessage{})
	registry.Register(&wire.Disconnect{})

	compressor, err := compress.FromMode(cfg.Pipeline.Compression)
	if err != nil {
		return fmt.Errorf("selecting compressor: %w", err)
	}
	key, err := crypto.LoadKeyFile(cfg.Pipeline.KeyFile)
	if err != nil {
		return fmt.Errorf("loading pipeline key: %w", err)
	}
	cipher, err := crypto.NewChaCha20Cipher(key)
	if err != nil {
		return fmt.Errorf("initializing cipher: %w", err)
	}
	pipeline := &transport.Pipeline{Compressor: compressor, Cipher: cipher}

	disconnected := make(chan struct{}, 1)
	hooks := transport.EventHooks{
		OnStateChange: func(conn *transport.Connection, ok bool) {
			logger.Info("connection state changed", "peer", conn.RemoteAddr(), "connected", ok)
			if !ok {
				disconnected <- struct{}{}
			}
		},
		OnRead: func(conn *transport.Connection, msg transport.Message) {
			switch m := msg.(type) {
			case *wire.Pong:
				logger.Info("received pong", "nonce", m.Nonce)
			case *wire.TextMessage:
				logger.Info("received text message", "body", m.Body)
			case *wire.Ack:
				logger.Info("received ack", "correlation_id", m.CorrelationId, "ok", m.Ok, "detail", m.Detail)
			}
		},
	}

	server := transport.NewServer(transport.ServerOptions{
		Registry:               registry,
		Pipeline:               pipeline,
		WorkerPool:             transport.NewWorkerPool(4, 16),
		BufferPool:             transport.NewFixedBufferPool(64 * 1024),
		Hooks:                  hooks,
		Logger:                 logger,
		MaxQueuedReads:         cfg.Queue.MaxQueuedReads,
		MaxQueuedSends:         cfg.Queue.MaxQueuedSends,
		SendQueueWait:          cfg.Queue.SendQueueWait,
		KeepAliveEnabled:       cfg.Keepalive.Enabled,
		KeepAliveTime:          cfg.Keepalive.Time,
		KeepAliveInterval:      cfg.Keepalive.Interval,
		SendRateBytesPerSecond:  rateOrZero(cfg.RateLimit.Enabled, cfg.RateLimit.BytesPerSecond),
		SendRateFramesPerSecond: frameRateOrZero(cfg.RateLimit.Enabled, cfg.RateLimit.FramesPerSecond),
	})

	conn, err := dialWithBackoff(ctx, server, cfg, tlsConfig, logger)
	if err != nil {
		return err
	}

	if message != "" {
		if err := conn.Send(&wire.TextMessage{Body: message}); err != nil {
			logger.Error("failed to send message", "error", err)
		}
	}

	select {
	case <-ctx.Done():
		conn.Disconnect()
		return nil
	case <-disconnected:
		return fmt.Errorf("connection to %s dropped", cfg.Server.Address)
	}
}

// dialWithBackoff retries Server.Dial with exponential backoff bounded by
// cfg.Dial, matching the retry shape a reconnecting agent needs against a
// server that may not be up yet.
func dialWithBackoff(ctx context.Context, server *transport.Server, cfg *config.ClientConfig, tlsConfig *tls.Config, logger *slog.Logger) (*transport.Connection, error) {
	delay := cfg.Dial.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= cfg.Dial.MaxAttempts; attempt++ {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.Dial.Timeout)
		conn, err := server.Dial(dialCtx, "tcp", cfg.Server.Address, tlsConfig)
		cancel()
		if err == nil {
			return conn, nil
		}
		lastErr = err
		logger.Warn("dial attempt failed", "attempt", attempt, "max_attempts", cfg.Dial.MaxAttempts, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > cfg.Dial.MaxDelay {
			delay = cfg.Dial.MaxDelay
		}
	}
	return nil, fmt.Errorf("dialing %s: %d attempts exhausted: %w", cfg.Server.Address, cfg.Dial.MaxAttempts, lastErr)
}

func frameRateOrZero(enabled bool, framesPerSecond int) int {
	if !enabled {
		return 0
	}
	return framesPerSecond
}

func rateOrZero(enabled bool, bytesPerSecond int64) int64 {
	if !enabled {
		return 0
	}
	return bytesPerSecond
}
