package backend

import (
	"context"

	"github.com/mwantia/resdb/data"
)

// MetadataBackend persists resource records and applies changesets atomically.
type MetadataBackend interface {
	Backend

	ReadRecord(ctx context.Context, path string) (*data.Record, error)

	ExistsRecord(ctx context.Context, path string) (bool, error)

	ListRecords(ctx context.Context, query *ListQuery) ([]*data.Record, error)

	// ApplyChangeset writes every put and delete of cs under one commit, or nothing.
	ApplyChangeset(ctx context.Context, cs *data.Changeset) error

	// Head returns the id of the last applied commit, empty for a fresh store.
	Head(ctx context.Context) (string, error)
}

// HistoryBackend is implemented by metadata backends with CapabilityHistory.
type HistoryBackend interface {
	// ReadHistory returns commits newest first, at most limit (0 = all).
	ReadHistory(ctx context.Context, limit int) ([]*data.CommitInfo, error)

	// ReadRevisions returns every state of path, oldest first.
	ReadRevisions(ctx context.Context, path string) ([]*data.Revision, error)
}
