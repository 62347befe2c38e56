package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meshwire/corewire/internal/archive"
	"github.com/meshwire/corewire/internal/compress"
	"github.com/meshwire/corewire/internal/config"
	"github.com/meshwire/corewire/internal/crypto"
	"github.com/meshwire/corewire/internal/logging"
	"github.com/meshwire/corewire/internal/pki"
	"github.com/meshwire/corewire/internal/transport"
	"github.com/meshwire/corewire/internal/wire"
)

func main() {
	configPath := flag.String("config", "/etc/corewire/server.yaml", "path to server config file")
	flag.Parse()

	cfg, err := config.LoadServerConfig(*configPath)
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// run builds every piece the transport core needs and blocks until ctx is
// cancelled: the message registry, the compress/encrypt pipeline, the
// shared worker and buffer pools, optional Prometheus and host-stats
// reporting, and the optional S3 archive sink wired as a demo OnRead
// handler for BinaryMessage traffic.
func run(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger) error {
	tlsConfig, err := pki.NewServerTLSConfig(cfg.TLS.CACert, cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		return fmt.Errorf("building server TLS config: %w", err)
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

	var metrics *transport.Metrics
	if cfg.Metrics.Enabled {
		metrics = transport.NewMetrics(prometheus.DefaultRegisterer, "corewire")
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
				logger.Error("metrics listener stopped", "error", err)
			}
		}()
		logger.Info("metrics listening", "addr", cfg.Metrics.Listen)
	}

	var sink *archive.S3Sink
	if cfg.Archive.Enabled {
		sink, err = archive.NewS3Sink(ctx, cfg.Archive.Region, cfg.Archive.Bucket, cfg.Archive.Prefix, logger)
		if err != nil {
			return fmt.Errorf("initializing S3 archive sink: %w", err)
		}
	}

	hooks := transport.EventHooks{
		OnStateChange: func(conn *transport.Connection, connected bool) {
			logger.Info("connection state changed", "peer", conn.RemoteAddr(), "connected", connected)
		},
		OnRead: func(conn *transport.Connection, msg transport.Message) {
			switch m := msg.(type) {
			case *wire.Ping:
				if err := conn.Send(&wire.Pong{Nonce: m.Nonce}); err != nil {
					logger.Warn("failed to answer ping", "peer", conn.RemoteAddr(), "error", err)
				}
			case *wire.BinaryMessage:
				if sink != nil {
					if err := sink.Archive(ctx, m); err != nil {
						logger.Warn("archiving binary message failed", "name", m.Name, "error", err)
					}
				}
			case *wire.UnknownMessage:
				logger.Warn("received message with unregistered tag", "tag", m.RawTag, "peer", conn.RemoteAddr())
			}
		},
	}

	server := transport.NewServer(transport.ServerOptions{
		Registry:               registry,
		Pipeline:               pipeline,
		WorkerPool:             transport.NewWorkerPool(cfg.Workers.Size, cfg.Workers.Size*4),
		BufferPool:             transport.NewFixedBufferPool(64 * 1024),
		Hooks:                  hooks,
		Logger:                 logger,
		MaxQueuedReads:         cfg.Queue.MaxQueuedReads,
		MaxQueuedSends:         cfg.Queue.MaxQueuedSends,
		SendQueueWait:          cfg.Queue.SendQueueWait,
		KeepAliveEnabled:       cfg.Keepalive.Enabled,
		KeepAliveTime:          cfg.Keepalive.Time,
		KeepAliveInterval:      cfg.Keepalive.Interval,
		Metrics:                metrics,
		SessionLogDir:          cfg.SessionLog.Dir,
		SendRateBytesPerSecond:  cfg.RateLimit.BytesPerSecond * boolToInt64(cfg.RateLimit.Enabled),
		SendRateFramesPerSecond: cfg.RateLimit.FramesPerSecond * int(boolToInt64(cfg.RateLimit.Enabled)),
	})

	if cfg.StatsReport.Enabled {
		reporter, err := transport.NewStatsReporter(server, logger, cfg.StatsReport.Schedule)
		if err != nil {
			return fmt.Errorf("initializing stats reporter: %w", err)
		}
		reporter.Start()
		defer reporter.Stop()
	}

	return server.Listen(ctx, cfg.Server.Listen, tlsConfig)
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
