package memory

import (
	"context"

	"github.com/mwantia/resdb/data"
)

func (mb *MemoryBackend) ReadHistory(ctx context.Context, limit int) ([]*data.CommitInfo, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	results := make([]*data.CommitInfo, 0, len(mb.commits))
	for i := len(mb.commits) - 1; i >= 0; i-- {
		if limit > 0 && len(results) == limit {
			break
		}
		commit := *mb.commits[i]
		results = append(results, &commit)
	}

	return results, nil
}

func (mb *MemoryBackend) ReadRevisions(ctx context.Context, path string) ([]*data.Revision, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	revisions, exists := mb.revisions[path]
	if !exists {
		return nil, data.ErrNotExist
	}

	results := make([]*data.Revision, len(revisions))
	for i, rev := range revisions {
		clone := *rev
		if rev.Record != nil {
			clone.Record = copyRecord(rev.Record)
		}
		results[i] = &clone
	}

	return results, nil
}
