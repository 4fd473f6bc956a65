package resdb

import (
	"fmt"

	"github.com/mwantia/resdb/catalog"
	"github.com/mwantia/resdb/log"
	"github.com/mwantia/resdb/pipeline"
	"github.com/mwantia/resdb/resource"
	"github.com/mwantia/resdb/store"
)

type DatabaseOptions struct {
	Store       *store.Store
	CatalogPath string // Empty keeps the catalog in memory only
	Registry    *resource.Registry
	Schema      catalog.Schema

	// ReadOnly never writes the catalog file and keeps serving the loaded
	// catalog when a rebuild at open fails.
	ReadOnly bool

	Readers      int // Concurrent read-only transactions
	ReindexBatch int // Paths per dependency query during commit
	Logger       *log.Logger
}

type DatabaseOption func(*DatabaseOptions) error

func newDefaultDatabaseOptions() *DatabaseOptions {
	return &DatabaseOptions{
		Readers:      1,
		ReindexBatch: pipeline.DefaultReindexBatch,
	}
}

// WithStore sets the object store. Without it an in-memory store is used.
func WithStore(s *store.Store) DatabaseOption {
	return func(opts *DatabaseOptions) error {
		opts.Store = s
		return nil
	}
}

// WithCatalogPath persists the catalog at path after every commit.
func WithCatalogPath(path string) DatabaseOption {
	return func(opts *DatabaseOptions) error {
		opts.CatalogPath = path
		return nil
	}
}

func WithReadOnly() DatabaseOption {
	return func(opts *DatabaseOptions) error {
		opts.ReadOnly = true
		return nil
	}
}

func WithRegistry(registry *resource.Registry) DatabaseOption {
	return func(opts *DatabaseOptions) error {
		opts.Registry = registry
		return nil
	}
}

func WithSchema(schema catalog.Schema) DatabaseOption {
	return func(opts *DatabaseOptions) error {
		opts.Schema = schema
		return nil
	}
}

func WithReaders(readers int) DatabaseOption {
	return func(opts *DatabaseOptions) error {
		if readers < 1 {
			return fmt.Errorf("readers must be at least 1, got %d", readers)
		}
		opts.Readers = readers
		return nil
	}
}

func WithReindexBatch(size int) DatabaseOption {
	return func(opts *DatabaseOptions) error {
		if size < 1 {
			return fmt.Errorf("reindex batch must be at least 1, got %d", size)
		}
		opts.ReindexBatch = size
		return nil
	}
}

func WithLogger(logger *log.Logger) DatabaseOption {
	return func(opts *DatabaseOptions) error {
		opts.Logger = logger
		return nil
	}
}

type TxOptions struct {
	AuthorID    string
	AuthorEmail string
	Message     string
	Method      string
	RequestPath string
	NoTimestamp bool
}

type TxOption func(*TxOptions)

func WithAuthor(id, email string) TxOption {
	return func(opts *TxOptions) {
		opts.AuthorID = id
		opts.AuthorEmail = email
	}
}

// WithMessage overrides the commit message derived from the request.
func WithMessage(message string) TxOption {
	return func(opts *TxOptions) {
		opts.Message = message
	}
}

func WithRequest(method, path string) TxOption {
	return func(opts *TxOptions) {
		opts.Method = method
		opts.RequestPath = path
	}
}

// WithoutTimestamp keeps modify times and authors of written records untouched.
func WithoutTimestamp() TxOption {
	return func(opts *TxOptions) {
		opts.NoTimestamp = true
	}
}
