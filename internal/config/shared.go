// Package config loads and validates the YAML configuration files for the
// wireserver and wireclient binaries.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// LoggingInfo configures the process-wide structured logger. When FilePath
// is set the file output rotates: MaxSizeMB/MaxBackups/MaxAgeDays mirror
// lumberjack.Logger's own fields; applyDefaults fills zero values with the
// defaults noted beside each field.
type LoggingInfo struct {
	Level      string `yaml:"level"`        // debug|info|warn|error, default: info
	Format     string `yaml:"format"`       // json|text, default: json
	FilePath   string `yaml:"file_path"`    // optional, additive to stdout
	MaxSizeMB  int    `yaml:"max_size_mb"`  // rotate after this size, default: 100
	MaxBackups int    `yaml:"max_backups"`  // old files kept, default: 5
	MaxAgeDays int    `yaml:"max_age_days"` // days to retain old files, default: 28
}

func (l *LoggingInfo) applyDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "json"
	}
	if l.MaxSizeMB <= 0 {
		l.MaxSizeMB = 100
	}
	if l.MaxBackups <= 0 {
		l.MaxBackups = 5
	}
	if l.MaxAgeDays <= 0 {
		l.MaxAgeDays = 28
	}
}

// TLSInfo contains the paths of the mTLS certificate bundle shared by the
// client and server roles.
type TLSInfo struct {
	CACert   string `yaml:"ca_cert"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

func (t TLSInfo) validate(prefix string) error {
	if t.CACert == "" {
		return fmt.Errorf("%s.ca_cert is required", prefix)
	}
	if t.CertFile == "" {
		return fmt.Errorf("%s.cert_file is required", prefix)
	}
	if t.KeyFile == "" {
		return fmt.Errorf("%s.key_file is required", prefix)
	}
	return nil
}

// ParseByteSize converts human-readable strings such as "256mb" or "1gb"
// into a byte count.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	// Ordered longest suffix first so "mb" isn't matched as "b".
	type suffix struct {
		s string
		m int64
	}
	suffixes := []suffix{
		{"gb", 1024 * 1024 * 1024},
		{"mb", 1024 * 1024},
		{"kb", 1024},
		{"b", 1},
	}

	for _, sfx := range suffixes {
		if strings.HasSuffix(s, sfx.s) {
			numStr := strings.TrimSuffix(s, sfx.s)
			num, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number %q: %w", numStr, err)
			}
			return num * sfx.m, nil
		}
	}

	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown size format %q", s)
	}
	return num, nil
}
