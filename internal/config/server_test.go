package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, yamlBody string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(yamlBody), 0644); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}
	return path
}

func TestLoadServerConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: "0.0.0.0:9847"
tls:
  ca_cert: ca.pem
  cert_file: server.pem
  key_file: server-key.pem
pipeline:
  key_file: pipeline.key
`)

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected default logging level 'info', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected default logging format 'json', got %q", cfg.Logging.Format)
	}
	if !cfg.Keepalive.Enabled {
		t.Error("expected keepalive enabled by default")
	}
	if cfg.Keepalive.Time != 30*time.Second {
		t.Errorf("expected default keepalive time 30s, got %s", cfg.Keepalive.Time)
	}
	if cfg.Pipeline.Compression != "zstd" {
		t.Errorf("expected default compression 'zstd', got %q", cfg.Pipeline.Compression)
	}
	if cfg.Queue.MaxQueuedReads != 1024 {
		t.Errorf("expected default max_queued_reads 1024, got %d", cfg.Queue.MaxQueuedReads)
	}
	if cfg.Queue.MaxQueuedSends != 1024 {
		t.Errorf("expected default max_queued_sends 1024, got %d", cfg.Queue.MaxQueuedSends)
	}
	if cfg.Workers.Size != 32 {
		t.Errorf("expected default worker pool size 32, got %d", cfg.Workers.Size)
	}
	if !cfg.StatsReport.Enabled {
		t.Error("expected stats report enabled by default")
	}
	if cfg.StatsReport.Schedule != "@every 30s" {
		t.Errorf("expected default stats report schedule, got %q", cfg.StatsReport.Schedule)
	}
}

func TestLoadServerConfig_MissingListen(t *testing.T) {
	path := writeConfig(t, `
tls:
  ca_cert: ca.pem
  cert_file: server.pem
  key_file: server-key.pem
pipeline:
  key_file: pipeline.key
`)

	if _, err := LoadServerConfig(path); err == nil {
		t.Fatal("expected error for missing server.listen")
	}
}

func TestLoadServerConfig_InvalidCompression(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: "0.0.0.0:9847"
tls:
  ca_cert: ca.pem
  cert_file: server.pem
  key_file: server-key.pem
pipeline:
  compression: lz4
  key_file: pipeline.key
`)

	if _, err := LoadServerConfig(path); err == nil {
		t.Fatal("expected error for invalid pipeline.compression")
	}
}

func TestLoadServerConfig_ArchiveS3RequiresBucket(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: "0.0.0.0:9847"
tls:
  ca_cert: ca.pem
  cert_file: server.pem
  key_file: server-key.pem
pipeline:
  key_file: pipeline.key
archive_s3:
  enabled: true
`)

	if _, err := LoadServerConfig(path); err == nil {
		t.Fatal("expected error for archive_s3 enabled without bucket")
	}
}

func TestLoadServerConfig_RateLimitRequiresPositiveRate(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: "0.0.0.0:9847"
tls:
  ca_cert: ca.pem
  cert_file: server.pem
  key_file: server-key.pem
pipeline:
  key_file: pipeline.key
rate_limit:
  enabled: true
`)

	if _, err := LoadServerConfig(path); err == nil {
		t.Fatal("expected error for rate_limit enabled without bytes_per_second")
	}
}

func TestLoadServerConfig_MissingFile(t *testing.T) {
	if _, err := LoadServerConfig("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
