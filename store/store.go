// Package store is the object store: resource records and their handler
// payloads, composed from a metadata backend and a blob backend.
package store

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mwantia/resdb/backend"
	"github.com/mwantia/resdb/data"
	"github.com/mwantia/resdb/data/errors"
	"github.com/mwantia/resdb/log"
)

// walkPageSize bounds how many records Walk holds in memory at once.
const walkPageSize = 500

type Store struct {
	Options  *StoreOptions
	OpenTime time.Time

	Metadata backend.MetadataBackend
	Blobs    backend.BlobBackend
	History  backend.HistoryBackend
	// IsDualBackend is set when metadata and blobs live in the same backend,
	// so blobs become part of the metadata transaction.
	IsDualBackend bool

	cache *lru.Cache[string, *data.Record]
	log   *log.Logger
}

func New(primary backend.MetadataBackend, opts ...StoreOption) (*Store, error) {
	options := newDefaultStoreOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	s := &Store{
		Options:  options,
		Metadata: primary,
		log:      options.Logger,
	}
	if s.log == nil {
		s.log = log.Discard()
	}

	caps := primary.GetCapabilities()

	// Perform capability check for blob storage
	if options.Blobs != nil {
		s.Blobs = options.Blobs
	} else if options.Auto && caps.Contains(backend.CapabilityBlob) {
		blobs, ok := primary.(backend.BlobBackend)
		if !ok {
			return nil, fmt.Errorf("failed to parse '%s' for blob backend", primary.Name())
		}
		s.Blobs = blobs
		s.IsDualBackend = true
	} else {
		return nil, errors.BackendUnsupported(data.ErrBackendUnsupported, primary.Name())
	}

	// Perform capability check for history
	if caps.Contains(backend.CapabilityHistory) {
		if history, ok := primary.(backend.HistoryBackend); ok {
			s.History = history
		}
	}

	if options.CacheSize > 0 {
		cache, err := lru.New[string, *data.Record](options.CacheSize)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}

	return s, nil
}

func (s *Store) Open(ctx context.Context) error {
	if err := s.Metadata.Open(ctx); err != nil {
		return fmt.Errorf("failed to open metadata backend '%s': %w", s.Metadata.Name(), err)
	}
	if !s.IsDualBackend {
		if err := s.Blobs.Open(ctx); err != nil {
			s.Metadata.Close(ctx)
			return fmt.Errorf("failed to open blob backend '%s': %w", s.Blobs.Name(), err)
		}
	}

	s.OpenTime = time.Now()
	s.log.Debug("opened metadata '%s' with blobs '%s'", s.Metadata.Name(), s.Blobs.Name())
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	var errs data.Errors

	if !s.IsDualBackend {
		errs.Add(s.Blobs.Close(ctx))
	}
	errs.Add(s.Metadata.Close(ctx))
	if s.cache != nil {
		s.cache.Purge()
	}

	return errs.Errors()
}

// Load returns a private copy of the record stored at path.
func (s *Store) Load(ctx context.Context, path string) (*data.Record, error) {
	if s.cache != nil {
		if rec, ok := s.cache.Get(path); ok {
			return rec.Clone(), nil
		}
	}

	rec, err := s.Metadata.ReadRecord(ctx, path)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Add(path, rec.Clone())
	}
	return rec, nil
}

// Exists reports whether a record lives at path. The root always exists.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	if path == data.RootPath {
		return true, nil
	}
	if s.cache != nil && s.cache.Contains(path) {
		return true, nil
	}

	return s.Metadata.ExistsRecord(ctx, path)
}

// Children returns the direct children of path ordered by path.
func (s *Store) Children(ctx context.Context, path string) ([]*data.Record, error) {
	return s.Metadata.ListRecords(ctx, &backend.ListQuery{Prefix: path})
}

// Walk calls fn for every record below path, in path order. Records are
// fetched page by page.
func (s *Store) Walk(ctx context.Context, path string, fn func(rec *data.Record) error) error {
	query := &backend.ListQuery{
		Prefix:    path,
		Recursive: true,
		Limit:     walkPageSize,
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		records, err := s.Metadata.ListRecords(ctx, query)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := fn(rec); err != nil {
				return err
			}
		}

		if len(records) < walkPageSize {
			return nil
		}
		query.Offset += len(records)
	}
}

// ReadHandler returns the payload referenced by h.
func (s *Store) ReadHandler(ctx context.Context, h data.Handler) ([]byte, error) {
	return s.Blobs.GetBlob(ctx, h.Hash)
}

func (s *Store) Head(ctx context.Context) (string, error) {
	return s.Metadata.Head(ctx)
}

func (s *Store) ReadHistory(ctx context.Context, limit int) ([]*data.CommitInfo, error) {
	if s.History == nil {
		return nil, errors.BackendUnsupported(data.ErrBackendUnsupported, s.Metadata.Name())
	}
	return s.History.ReadHistory(ctx, limit)
}

func (s *Store) ReadRevisions(ctx context.Context, path string) ([]*data.Revision, error) {
	if s.History == nil {
		return nil, errors.BackendUnsupported(data.ErrBackendUnsupported, s.Metadata.Name())
	}
	return s.History.ReadRevisions(ctx, path)
}

// Commit applies cs all-or-nothing. With a separate blob backend the payloads
// are written first; they are content addressed, so a failed commit only leaves
// unreferenced blobs behind.
func (s *Store) Commit(ctx context.Context, cs *data.Changeset) error {
	limit := s.Blobs.GetCapabilities().MaxObjectSize
	for hash, payload := range cs.Blobs {
		if err := backend.CheckBlobSize(hash, len(payload), limit); err != nil {
			return err
		}
	}

	apply := cs
	if !s.IsDualBackend && len(cs.Blobs) > 0 {
		for hash, payload := range cs.Blobs {
			exists, err := s.Blobs.HasBlob(ctx, hash)
			if err != nil {
				return fmt.Errorf("failed to check blob '%s': %w", hash, err)
			}
			if exists {
				continue
			}
			if err := s.Blobs.PutBlob(ctx, hash, payload); err != nil {
				return fmt.Errorf("failed to write blob '%s': %w", hash, err)
			}
		}

		clone := *cs
		clone.Blobs = nil
		apply = &clone
	}

	if err := s.Metadata.ApplyChangeset(ctx, apply); err != nil {
		return err
	}

	if s.cache != nil {
		for _, path := range cs.Deletes {
			s.cache.Remove(path)
		}
		for _, rec := range cs.Puts {
			clone := rec.Clone()
			clone.ClearDirty()
			s.cache.Add(rec.Path, clone)
		}
	}

	s.log.Debug("commit %s: %d puts, %d deletes, %d blobs", cs.Commit.ID, len(cs.Puts), len(cs.Deletes), len(cs.Blobs))
	return nil
}
