package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := Default()
	original.Store = StoreConfig{Backend: "sqlite", DSN: "/var/lib/resdb/resdb.db", CacheSize: 64}
	original.Blobs = BlobsConfig{Backend: "s3", Endpoint: "localhost:9000", Bucket: "resdb", UseSSL: true}
	original.Catalog.Path = "/var/lib/resdb/catalog.json"

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.Store != original.Store {
		t.Errorf("Store = %+v, want %+v", got.Store, original.Store)
	}
	if got.Blobs != original.Blobs {
		t.Errorf("Blobs = %+v, want %+v", got.Blobs, original.Blobs)
	}
	if got.Catalog != original.Catalog {
		t.Errorf("Catalog = %+v, want %+v", got.Catalog, original.Catalog)
	}
	if got.Gate.Readers != original.Gate.Readers {
		t.Errorf("Gate.Readers = %d, want %d", got.Gate.Readers, original.Gate.Readers)
	}
}

func TestManager_Read_KeepsDefaults(t *testing.T) {
	m := &Manager{}
	cfg, err := m.Read(strings.NewReader("[gate]\nreaders = 8\n"))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if cfg.Gate.Readers != 8 {
		t.Errorf("Gate.Readers = %d, want 8", cfg.Gate.Readers)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, "memory")
	}
	if cfg.Catalog.ReindexBatch != 200 {
		t.Errorf("Catalog.ReindexBatch = %d, want 200", cfg.Catalog.ReindexBatch)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "default", modify: func(*Config) {}},
		{name: "sqlite without dsn", modify: func(c *Config) { c.Store.Backend = "sqlite" }, wantErr: "requires a dsn"},
		{name: "unknown store", modify: func(c *Config) { c.Store.Backend = "etcd" }, wantErr: "unknown backend 'etcd'"},
		{name: "s3 without bucket", modify: func(c *Config) { c.Blobs = BlobsConfig{Backend: "s3", Endpoint: "localhost"} }, wantErr: "endpoint and bucket"},
		{name: "consul", modify: func(c *Config) { c.Blobs = BlobsConfig{Backend: "consul", Address: "127.0.0.1:8500"} }},
		{name: "zero readers", modify: func(c *Config) { c.Gate.Readers = 0 }, wantErr: "readers"},
		{name: "bad interval", modify: func(c *Config) { c.Scheduler.Interval = "soon" }, wantErr: "invalid interval"},
		{name: "bad level", modify: func(c *Config) { c.Log.Level = "LOUD" }, wantErr: "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestSchedulerConfig_ParseInterval(t *testing.T) {
	interval, err := SchedulerConfig{Interval: "90s"}.ParseInterval()
	if err != nil {
		t.Fatalf("ParseInterval() error = %v", err)
	}
	if interval != 90*time.Second {
		t.Errorf("interval = %v, want 90s", interval)
	}

	if interval, _ := (SchedulerConfig{}).ParseInterval(); interval != 0 {
		t.Errorf("empty interval = %v, want 0", interval)
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "resdb.toml")

	if err := Init(path, Default()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if err := Init(path, Default()); err == nil {
		t.Errorf("Init() on existing file should fail")
	}

	cfg, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
