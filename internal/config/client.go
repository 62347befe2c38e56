package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ClientConfig is the full configuration of the wireclient binary.
type ClientConfig struct {
	Server    ServerAddr      `yaml:"server"`
	TLS       TLSInfo         `yaml:"tls"`
	Logging   LoggingInfo     `yaml:"logging"`
	Keepalive KeepaliveConfig `yaml:"keepalive"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Queue     QueueConfig     `yaml:"queue"`
	Dial      DialConfig      `yaml:"dial"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerAddr is the remote address the client dials.
type ServerAddr struct {
	Address string `yaml:"address"`
}

// DialConfig controls connection-establishment retries.
type DialConfig struct {
	Timeout      time.Duration `yaml:"timeout"`       // default: 10s
	MaxAttempts  int           `yaml:"max_attempts"`  // default: 5
	InitialDelay time.Duration `yaml:"initial_delay"` // default: 1s
	MaxDelay     time.Duration `yaml:"max_delay"`     // default: 30s
}

// LoadClientConfig reads and validates the wireclient YAML configuration.
func LoadClientConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading client config: %w", err)
	}

	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating client config: %w", err)
	}

	return &cfg, nil
}

func (c *ClientConfig) validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
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

	if c.Dial.Timeout <= 0 {
		c.Dial.Timeout = 10 * time.Second
	}
	if c.Dial.MaxAttempts <= 0 {
		c.Dial.MaxAttempts = 5
	}
	if c.Dial.InitialDelay <= 0 {
		c.Dial.InitialDelay = 1 * time.Second
	}
	if c.Dial.MaxDelay <= 0 {
		c.Dial.MaxDelay = 30 * time.Second
	}

	if c.RateLimit.Enabled && c.RateLimit.BytesPerSecond <= 0 {
		return fmt.Errorf("rate_limit.bytes_per_second must be positive when rate_limit is enabled")
	}

	return nil
}
