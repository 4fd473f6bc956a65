package store

import (
	"github.com/mwantia/resdb/backend"
	"github.com/mwantia/resdb/log"
)

type StoreOptions struct {
	Blobs backend.BlobBackend

	Auto      bool        // Use the primary as blob backend when it has the capability
	CacheSize int         // Number of records kept in the LRU cache, 0 disables it
	Logger    *log.Logger // Defaults to a discarding logger
}

type StoreOption func(*StoreOptions) error

func newDefaultStoreOptions() *StoreOptions {
	return &StoreOptions{
		Auto:      true,
		CacheSize: 1024,
	}
}

// WithBlobs stores handler payloads in a dedicated blob backend.
func WithBlobs(blobs backend.BlobBackend) StoreOption {
	return func(so *StoreOptions) error {
		so.Blobs = blobs
		return nil
	}
}

// DisableAuto prevents the primary backend from being used for blobs.
func DisableAuto() StoreOption {
	return func(so *StoreOptions) error {
		so.Auto = false
		return nil
	}
}

// WithCacheSize sets how many records are cached; 0 disables caching.
func WithCacheSize(size int) StoreOption {
	return func(so *StoreOptions) error {
		if size < 0 {
			size = 0
		}
		so.CacheSize = size
		return nil
	}
}

func WithLogger(logger *log.Logger) StoreOption {
	return func(so *StoreOptions) error {
		so.Logger = logger
		return nil
	}
}
