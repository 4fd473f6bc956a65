// Package resdb is a transactional, path-addressed resource database.
//
// A Database combines an object store holding resource records and their
// payloads with a catalog indexing them. Every read-write transaction runs the
// commit pipeline, which keeps links and dependent documents consistent after
// creates, deletes and moves, then writes store and catalog in lockstep.
package resdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mwantia/resdb/backend/memory"
	"github.com/mwantia/resdb/catalog"
	"github.com/mwantia/resdb/data"
	rerrors "github.com/mwantia/resdb/data/errors"
	"github.com/mwantia/resdb/gate"
	"github.com/mwantia/resdb/log"
	"github.com/mwantia/resdb/resource"
	"github.com/mwantia/resdb/store"
)

type Database struct {
	Options  *DatabaseOptions
	OpenTime time.Time

	store    *store.Store
	catalog  *catalog.Catalog
	registry *resource.Registry
	gate     *gate.Gate
	log      *log.Logger

	mu     sync.Mutex
	closed bool
}

// Open opens the store and brings the catalog up to date with it. A missing
// or stale catalog file is rebuilt from the store.
func Open(ctx context.Context, opts ...DatabaseOption) (*Database, error) {
	options := newDefaultDatabaseOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	db := &Database{
		Options:  options,
		store:    options.Store,
		registry: options.Registry,
		gate:     gate.New(options.Readers),
		log:      options.Logger,
	}
	if db.log == nil {
		db.log = log.Discard()
	}

	if db.store == nil {
		s, err := store.New(memory.NewMemoryBackend(), store.WithLogger(db.log.Named("store")))
		if err != nil {
			return nil, err
		}
		db.store = s
	}
	if db.registry == nil {
		registry, err := resource.NewRegistry()
		if err != nil {
			return nil, err
		}
		db.registry = registry
	}

	schema := options.Schema
	if schema == nil {
		schema = catalog.DefaultSchema()
	}
	db.catalog = catalog.New(schema, catalog.WithLogger(db.log.Named("catalog")))

	if err := db.store.Open(ctx); err != nil {
		return nil, err
	}

	if err := db.loadCatalog(ctx); err != nil {
		db.store.Close(ctx)
		return nil, err
	}

	db.OpenTime = time.Now()
	db.log.Info("database opened at head '%s' with %d documents", db.catalog.Head(), db.catalog.Len())
	return db, nil
}

func (db *Database) loadCatalog(ctx context.Context) error {
	head, err := db.store.Head(ctx)
	if err != nil {
		return rerrors.Internal(err, "read store head")
	}

	if db.Options.CatalogPath != "" {
		if err := db.catalog.Load(db.Options.CatalogPath); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				db.log.Warn("failed to load catalog, rebuilding: %v", err)
			}
		}
	}

	if db.catalog.Head() == head {
		return nil
	}

	db.log.Info("catalog at '%s' is behind store head '%s', rebuilding", db.catalog.Head(), head)
	if _, err := db.rebuild(ctx, head); err != nil {
		if db.Options.ReadOnly {
			db.log.Warn("serving stale catalog: %v", err)
			return nil
		}
		return err
	}
	return db.saveCatalog()
}

// rebuild recomputes every document from the store.
func (db *Database) rebuild(ctx context.Context, head string) (int, error) {
	view := &committedView{db: db}

	count, err := db.catalog.Rebuild(ctx, head, func(ctx context.Context, emit catalog.EmitFunc) error {
		return db.store.Walk(ctx, data.RootPath, func(rec *data.Record) error {
			res, err := db.registry.Resolve(rec)
			if err != nil {
				emit(rec.Path, nil, err)
				return nil
			}

			doc, err := resource.IndexValues(ctx, view, res)
			emit(rec.Path, doc, err)
			return nil
		})
	})
	if err != nil {
		return 0, rerrors.Internal(err, "catalog rebuild")
	}

	ReindexedDocuments.WithLabelValues("rebuild").Add(float64(count))
	return count, nil
}

func (db *Database) saveCatalog() error {
	if db.Options.CatalogPath == "" || db.Options.ReadOnly {
		return nil
	}
	return db.catalog.Save(db.Options.CatalogPath)
}

// Begin opens a transaction once the gate admits it. A context that already
// carries an open transaction is refused with a contention error.
func (db *Database) Begin(ctx context.Context, mode gate.Mode, opts ...TxOption) (*Transaction, error) {
	if db.isClosed() {
		return nil, data.ErrClosed
	}

	if current, ok := FromContext(ctx); ok && !current.Done() {
		return nil, rerrors.Contention(data.ErrAlreadyLocked, "begin")
	}

	handle, err := db.gate.Acquire(ctx, mode)
	if err != nil {
		return nil, err
	}

	return newTransaction(ctx, db, handle, opts...), nil
}

// Search runs q against the catalog, inside the transaction carried by ctx
// or under a short read-only admission.
func (db *Database) Search(ctx context.Context, q catalog.Query, opts catalog.SearchOptions) (*catalog.Result, error) {
	if tx, ok := FromContext(ctx); ok && !tx.Done() {
		return tx.Search(ctx, q, opts)
	}

	tx, err := db.Begin(ctx, gate.ReadOnly)
	if err != nil {
		return nil, err
	}
	defer tx.Abort()

	return tx.Search(ctx, q, opts)
}

// ReindexAll rebuilds the catalog from the store under exclusive admission
// and returns the number of indexed documents.
func (db *Database) ReindexAll(ctx context.Context) (int, error) {
	tx, err := db.Begin(ctx, gate.ReadWrite)
	if err != nil {
		return 0, err
	}
	defer tx.Abort()

	head, err := db.store.Head(ctx)
	if err != nil {
		return 0, rerrors.Internal(err, "read store head")
	}

	count, err := db.rebuild(tx.Context(), head)
	if err != nil {
		return 0, err
	}
	if err := db.saveCatalog(); err != nil {
		return count, rerrors.Internal(err, "save catalog")
	}

	db.log.Info("reindexed %d documents", count)
	return count, nil
}

// History returns the most recent commits, newest first.
func (db *Database) History(ctx context.Context, limit int) ([]*data.CommitInfo, error) {
	return db.store.ReadHistory(ctx, limit)
}

// Revisions returns every committed state of path, oldest first.
func (db *Database) Revisions(ctx context.Context, path string) ([]*data.Revision, error) {
	clean, err := data.CleanPath(path)
	if err != nil {
		return nil, err
	}
	return db.store.ReadRevisions(ctx, clean)
}

func (db *Database) Registry() *resource.Registry {
	return db.registry
}

func (db *Database) Gate() *gate.Gate {
	return db.gate
}

func (db *Database) Logger() *log.Logger {
	return db.log
}

// Close waits for exclusive admission, persists the catalog and closes the store.
func (db *Database) Close(ctx context.Context) error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return data.ErrClosed
	}
	db.closed = true
	db.mu.Unlock()

	handle, err := db.gate.Acquire(ctx, gate.ReadWrite)
	if err != nil {
		return err
	}
	defer handle.Release()

	var errs data.Errors
	if err := db.saveCatalog(); err != nil {
		errs.Add(fmt.Errorf("failed to save catalog: %w", err))
	}
	errs.Add(db.store.Close(ctx))

	db.log.Info("database closed")
	return errs.Errors()
}

func (db *Database) isClosed() bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.closed
}

// committedView resolves resources straight from the store.
type committedView struct {
	db *Database
}

func (v *committedView) Get(ctx context.Context, path string) (resource.Resource, error) {
	rec, err := v.db.store.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return v.db.registry.Resolve(rec)
}
