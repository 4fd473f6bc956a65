package resdb

import (
	"context"
	"fmt"

	"github.com/mwantia/resdb/backend"
	"github.com/mwantia/resdb/backend/consul"
	"github.com/mwantia/resdb/backend/local"
	"github.com/mwantia/resdb/backend/memory"
	"github.com/mwantia/resdb/backend/postgres"
	"github.com/mwantia/resdb/backend/readonly"
	"github.com/mwantia/resdb/backend/s3"
	"github.com/mwantia/resdb/backend/sqlite"
	"github.com/mwantia/resdb/config"
	"github.com/mwantia/resdb/log"
	"github.com/mwantia/resdb/resource"
	"github.com/mwantia/resdb/store"
)

// OpenConfig builds the backends described by cfg and opens a database on
// them. A nil registry only knows the default class.
func OpenConfig(ctx context.Context, cfg *config.Config, registry *resource.Registry, opts ...DatabaseOption) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := cfg.Log.Logger("resdb")
	if err != nil {
		return nil, err
	}

	s, err := NewStore(ctx, cfg, logger.Named("store"))
	if err != nil {
		return nil, err
	}

	options := []DatabaseOption{
		WithStore(s),
		WithCatalogPath(cfg.Catalog.Path),
		WithReaders(cfg.Gate.Readers),
		WithReindexBatch(cfg.Catalog.ReindexBatch),
		WithLogger(logger),
	}
	if registry != nil {
		options = append(options, WithRegistry(registry))
	}
	if cfg.Store.ReadOnly {
		options = append(options, WithReadOnly())
	}

	return Open(ctx, append(options, opts...)...)
}

// NewStore composes the metadata and blob backends selected by cfg.
func NewStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (*store.Store, error) {
	primary, err := newMetadataBackend(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if cfg.Store.ReadOnly {
		primary = readonly.NewReadOnlyBackend(primary)
	}

	opts := []store.StoreOption{
		store.WithCacheSize(cfg.Store.CacheSize),
		store.WithLogger(logger),
	}

	blobs, err := newBlobBackend(cfg.Blobs)
	if err != nil {
		return nil, err
	}
	if blobs != nil {
		opts = append(opts, store.WithBlobs(blobs))
	}

	return store.New(primary, opts...)
}

func newMetadataBackend(ctx context.Context, cfg config.StoreConfig) (backend.MetadataBackend, error) {
	switch cfg.Backend {
	case "memory":
		return memory.NewMemoryBackend(), nil
	case "sqlite":
		return sqlite.NewSQLiteBackend(cfg.DSN)
	case "postgres":
		return postgres.NewPostgresBackend(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store backend '%s'", cfg.Backend)
	}
}

func newBlobBackend(cfg config.BlobsConfig) (backend.BlobBackend, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "local":
		return local.NewLocalBackend(cfg.Root)
	case "s3":
		return s3.NewS3Backend(cfg.Endpoint, cfg.Bucket, cfg.AccessKey, cfg.SecretKey, cfg.UseSSL)
	case "consul":
		return consul.NewConsulBackend(&consul.ConsulBackendConfig{
			Address:    cfg.Address,
			Token:      cfg.Token,
			Datacenter: cfg.Datacenter,
			Prefix:     cfg.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend '%s'", cfg.Backend)
	}
}
