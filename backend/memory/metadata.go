package memory

import (
	"context"
	"strings"

	"github.com/mwantia/resdb/backend"
	"github.com/mwantia/resdb/data"
)

func (mb *MemoryBackend) ReadRecord(ctx context.Context, path string) (*data.Record, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	rec, exists := mb.records.Get(path)
	if !exists {
		return nil, data.ErrNotExist
	}

	return copyRecord(rec), nil
}

func (mb *MemoryBackend) ExistsRecord(ctx context.Context, path string) (bool, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	_, exists := mb.records.Get(path)
	return exists, nil
}

func (mb *MemoryBackend) ListRecords(ctx context.Context, query *backend.ListQuery) ([]*data.Record, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	lower := query.LowerBound()
	results := make([]*data.Record, 0)

	mb.records.Ascend(lower, func(path string, rec *data.Record) bool {
		if lower != data.RootPath && !strings.HasPrefix(path, lower) {
			return false
		}
		if query.Matches(path) {
			results = append(results, copyRecord(rec))
		}
		return true
	})

	return backend.Paginate(results, query), nil
}

// ApplyChangeset swaps all puts and deletes in under the write lock. Records are
// copied before the lock is taken, so nothing can fail half way.
func (mb *MemoryBackend) ApplyChangeset(ctx context.Context, cs *data.Changeset) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	puts := make([]*data.Record, len(cs.Puts))
	for i, rec := range cs.Puts {
		puts[i] = copyRecord(rec)
	}

	commit := cs.Commit
	for hash, payload := range cs.Blobs {
		if err := backend.CheckBlobSize(hash, len(payload), mb.maxObjectSize); err != nil {
			return err
		}
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	for hash, payload := range cs.Blobs {
		if _, exists := mb.blobs[hash]; !exists {
			mb.blobs[hash] = append([]byte(nil), payload...)
		}
	}

	for _, path := range cs.Deletes {
		if _, deleted := mb.records.Delete(path); deleted {
			mb.revisions[path] = append(mb.revisions[path], &data.Revision{
				CommitID: commit.ID,
				Time:     commit.Time,
				Deleted:  true,
			})
		}
	}
	for _, rec := range puts {
		mb.records.Set(rec.Path, rec)
		mb.revisions[rec.Path] = append(mb.revisions[rec.Path], &data.Revision{
			CommitID: commit.ID,
			Time:     commit.Time,
			Record:   rec,
		})
	}

	mb.commits = append(mb.commits, &commit)
	mb.head = commit.ID

	return nil
}

func (mb *MemoryBackend) Head(ctx context.Context) (string, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	return mb.head, nil
}

func copyRecord(rec *data.Record) *data.Record {
	clone := rec.Clone()
	clone.ClearDirty()
	return clone
}
