package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig is the full configuration of the wireserver binary.
type ServerConfig struct {
	Server      ServerListen      `yaml:"server"`
	TLS         TLSInfo           `yaml:"tls"`
	Logging     LoggingInfo       `yaml:"logging"`
	SessionLog  SessionLogConfig  `yaml:"session_log"`
	Keepalive   KeepaliveConfig   `yaml:"keepalive"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Queue       QueueConfig       `yaml:"queue"`
	Workers     WorkerPoolConfig  `yaml:"workers"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	StatsReport StatsReportConfig `yaml:"stats_report"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Archive     ArchiveS3Config   `yaml:"archive_s3"`
}

// RateLimitConfig bounds each connection's outbound byte rate and,
// optionally, its outbound frame rate independent of frame size.
type RateLimitConfig struct {
	Enabled         bool  `yaml:"enabled"`
	BytesPerSecond  int64 `yaml:"bytes_per_second"`
	FramesPerSecond int   `yaml:"frames_per_second"`
}

// ServerListen contains the listener bind address.
type ServerListen struct {
	Listen string `yaml:"listen"`
}

// SessionLogConfig configures the optional per-connection log files.
type SessionLogConfig struct {
	Dir string `yaml:"dir"` // empty disables per-connection log files
}

// KeepaliveConfig configures the TCP keepalive applied to accepted
// connections. Go's net.TCPConn only exposes a single keepalive period, not
// the separate idle-time/probe-interval pair a raw SO_KEEPALIVE socket
// option would give: Time is what actually reaches SetKeepAlivePeriod,
// Interval is accepted and logged but otherwise unused.
type KeepaliveConfig struct {
	Enabled  bool          `yaml:"enabled"`  // default: true
	Time     time.Duration `yaml:"time"`     // default: 30s
	Interval time.Duration `yaml:"interval"` // accepted, logged, not enforced
}

// PipelineConfig selects the compression and cipher implementations and
// carries the pre-shared symmetric key material.
type PipelineConfig struct {
	Compression string `yaml:"compression"` // zstd|gzip|none, default: zstd
	KeyFile     string `yaml:"key_file"`    // path to a 32-byte raw key
}

// QueueConfig bounds the per-connection receive and send queues, resolving
// the unbounded growth a naive producer/consumer split would otherwise have.
type QueueConfig struct {
	MaxQueuedReads  int           `yaml:"max_queued_reads"`  // default: 1024
	MaxQueuedSends  int           `yaml:"max_queued_sends"`  // default: 1024
	SendQueueWait   time.Duration `yaml:"send_queue_wait"`   // default: 5s
}

// WorkerPoolConfig sizes the shared worker pool that runs consumer
// callbacks dispatched off the per-connection producers.
type WorkerPoolConfig struct {
	Size int `yaml:"size"` // default: 32
}

// MetricsConfig configures the Prometheus metrics HTTP listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // default: "127.0.0.1:9849"
}

// StatsReportConfig configures the periodic host-resource sampling job.
type StatsReportConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron expression, default: "@every 30s"
}

// ArchiveS3Config configures the optional demo OnRead handler that archives
// received binary payloads to S3. It lives outside the transport core and
// is wired only by cmd/wireserver.
type ArchiveS3Config struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
	Region  string `yaml:"region"`
}

// LoadServerConfig reads and validates the wireserver YAML configuration.
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading server config: %w", err)
	}

	var cfg ServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating server config: %w", err)
	}

	return &cfg, nil
}

func (c *ServerConfig) validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if err := c.TLS.validate("tls"); err != nil {
		return err
	}

	c.Logging.applyDefaults()

	if !c.Keepalive.Enabled && c.Keepalive.Time == 0 {
		c.Keepalive.Enabled = true
	}
	if c.Keepalive.Time <= 0 {
		c.Keepalive.Time = 30 * time.Second
	}

	c.Pipeline.Compression = strings.ToLower(strings.TrimSpace(c.Pipeline.Compression))
	if c.Pipeline.Compression == "" {
		c.Pipeline.Compression = "zstd"
	}
	switch c.Pipeline.Compression {
	case "zstd", "gzip", "none":
	default:
		return fmt.Errorf("pipeline.compression must be zstd, gzip or none, got %q", c.Pipeline.Compression)
	}
	if c.Pipeline.KeyFile == "" {
		return fmt.Errorf("pipeline.key_file is required")
	}

	if c.Queue.MaxQueuedReads <= 0 {
		c.Queue.MaxQueuedReads = 1024
	}
	if c.Queue.MaxQueuedSends <= 0 {
		c.Queue.MaxQueuedSends = 1024
	}
	if c.Queue.SendQueueWait <= 0 {
		c.Queue.SendQueueWait = 5 * time.Second
	}

	if c.Workers.Size <= 0 {
		c.Workers.Size = 32
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		c.Metrics.Listen = "127.0.0.1:9849"
	}

	if !c.StatsReport.Enabled && c.StatsReport.Schedule == "" {
		c.StatsReport.Enabled = true
	}
	if c.StatsReport.Schedule == "" {
		c.StatsReport.Schedule = "@every 30s"
	}

	if c.RateLimit.Enabled && c.RateLimit.BytesPerSecond <= 0 {
		return fmt.Errorf("rate_limit.bytes_per_second must be positive when rate_limit is enabled")
	}

	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive_s3.bucket is required when archive_s3 is enabled")
		}
		if c.Archive.Region == "" {
			c.Archive.Region = "us-east-1"
		}
	}

	return nil
}
