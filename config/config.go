// Package config reads and writes the TOML configuration of a database.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mwantia/resdb/log"
)

type Config struct {
	Store     StoreConfig     `toml:"store"`
	Blobs     BlobsConfig     `toml:"blobs"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Gate      GateConfig      `toml:"gate"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Log       LogConfig       `toml:"log"`
}

// StoreConfig selects the metadata backend.
type StoreConfig struct {
	Backend   string `toml:"backend"`       // "memory", "sqlite" or "postgres"
	DSN       string `toml:"dsn,omitempty"` // sqlite file or postgres connection string
	CacheSize int    `toml:"cache_size"`    // records kept in memory, 0 disables the cache
	ReadOnly  bool   `toml:"read_only"`     // refuse every commit
}

// BlobsConfig selects a dedicated blob backend. An empty backend keeps
// payloads in the metadata backend.
type BlobsConfig struct {
	Backend string `toml:"backend"` // "", "local", "s3" or "consul"

	// local
	Root string `toml:"root,omitempty"`

	// s3
	Endpoint  string `toml:"endpoint,omitempty"`
	Bucket    string `toml:"bucket,omitempty"`
	AccessKey string `toml:"access_key,omitempty"`
	SecretKey string `toml:"secret_key,omitempty"`
	UseSSL    bool   `toml:"use_ssl,omitempty"`

	// consul
	Address    string `toml:"address,omitempty"`
	Token      string `toml:"token,omitempty"`
	Datacenter string `toml:"datacenter,omitempty"`
	Prefix     string `toml:"prefix,omitempty"`
}

type CatalogConfig struct {
	Path         string `toml:"path"`
	ReindexBatch int    `toml:"reindex_batch"`
}

type GateConfig struct {
	Readers int `toml:"readers"`
}

type SchedulerConfig struct {
	Interval string `toml:"interval"` // Go duration, "0s" disables the scheduler
}

type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file,omitempty"`
	JSON       bool   `toml:"json"`
	NoTerminal bool   `toml:"no_terminal"`
}

// Default returns an in-memory configuration that is valid as is.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:   "memory",
			CacheSize: 1024,
		},
		Catalog: CatalogConfig{
			ReindexBatch: 200,
		},
		Gate: GateConfig{
			Readers: 4,
		},
		Scheduler: SchedulerConfig{
			Interval: "1m",
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

// Validate reports every problem of the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case "memory":
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store: backend '%s' requires a dsn", c.Store.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("store: unknown backend '%s'", c.Store.Backend))
	}
	if c.Store.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("store: cache_size must not be negative"))
	}

	switch c.Blobs.Backend {
	case "":
	case "local":
		if c.Blobs.Root == "" {
			errs = append(errs, fmt.Errorf("blobs: local backend requires a root"))
		}
	case "s3":
		if c.Blobs.Endpoint == "" || c.Blobs.Bucket == "" {
			errs = append(errs, fmt.Errorf("blobs: s3 backend requires endpoint and bucket"))
		}
	case "consul":
		if c.Blobs.Address == "" {
			errs = append(errs, fmt.Errorf("blobs: consul backend requires an address"))
		}
	default:
		errs = append(errs, fmt.Errorf("blobs: unknown backend '%s'", c.Blobs.Backend))
	}

	if c.Catalog.ReindexBatch < 1 {
		errs = append(errs, fmt.Errorf("catalog: reindex_batch must be at least 1"))
	}
	if c.Gate.Readers < 1 {
		errs = append(errs, fmt.Errorf("gate: readers must be at least 1"))
	}
	if _, err := c.Scheduler.ParseInterval(); err != nil {
		errs = append(errs, err)
	}
	if _, err := log.Parse(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

func (s SchedulerConfig) ParseInterval() (time.Duration, error) {
	if s.Interval == "" {
		return 0, nil
	}

	interval, err := time.ParseDuration(s.Interval)
	if err != nil {
		return 0, fmt.Errorf("scheduler: invalid interval '%s': %w", s.Interval, err)
	}
	if interval < 0 {
		return 0, fmt.Errorf("scheduler: interval must not be negative")
	}
	return interval, nil
}

// Logger builds the logger described by the log section.
func (l LogConfig) Logger(name string) (*log.Logger, error) {
	level, err := log.Parse(l.Level)
	if err != nil {
		return nil, err
	}

	logger := log.NewLogger(name, level, l.File, l.NoTerminal)
	logger.JSON = l.JSON
	return logger, nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from r on top of the defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path unless a file already exists there.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
