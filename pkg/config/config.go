// Package config holds the kvrange configuration, loaded from a YAML file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/goccy/go-yaml"
)

const (
	EnginePebble = "pebble"
	EngineMemory = "memory"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Logger  LoggerConfig  `yaml:"logger"`
	Storage StorageConfig `yaml:"storage"`
	HTTP    HTTPConfig    `yaml:"http"`
	QUIC    QUICConfig    `yaml:"quic"`
	Scan    ScanConfig    `yaml:"scan"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type StorageConfig struct {
	Engine string `yaml:"engine"`
	// Path is the pebble data directory. Empty means an in-memory filesystem.
	Path           string `yaml:"path"`
	CacheSizeMB    int64  `yaml:"cache_size_mb"`
	MemTableSizeMB uint64 `yaml:"mem_table_size_mb"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type QUICConfig struct {
	// Addr is the UDP listen address of the scan protocol. Empty disables it.
	Addr string `yaml:"addr"`
}

type ScanConfig struct {
	// DefaultLimit applies to requests that carry no limit. Negative means unbounded.
	DefaultLimit int `yaml:"default_limit"`
	// MaxLimit caps every request. Negative means no cap.
	MaxLimit int `yaml:"max_limit"`
}

// Default returns a config for a local in-memory node.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			Engine:         EnginePebble,
			CacheSizeMB:    64,
			MemTableSizeMB: 16,
		},
		HTTP: HTTPConfig{
			Addr: "127.0.0.1:8080",
		},
		QUIC: QUICConfig{
			Addr: "127.0.0.1:9090",
		},
		Scan: ScanConfig{
			DefaultLimit: 100,
			MaxLimit:     10000,
		},
	}
}

// Load reads the YAML file at path on top of Default. A missing file yields
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Engine {
	case EnginePebble, EngineMemory:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown storage engine %q", ErrInvalid, c.Storage.Engine))
	}
	if c.Storage.CacheSizeMB < 0 {
		errs = append(errs, fmt.Errorf("%w: negative cache_size_mb", ErrInvalid))
	}
	if c.Scan.MaxLimit >= 0 && c.Scan.DefaultLimit > c.Scan.MaxLimit {
		errs = append(errs, fmt.Errorf("%w: default_limit %d above max_limit %d", ErrInvalid, c.Scan.DefaultLimit, c.Scan.MaxLimit))
	}
	for name, addr := range map[string]string{"http.addr": c.HTTP.Addr, "quic.addr": c.QUIC.Addr} {
		if addr == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrInvalid, name, err))
		}
	}
	return errors.Join(errs...)
}

// Marshal renders c as YAML, e.g. to write a starting config file.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
