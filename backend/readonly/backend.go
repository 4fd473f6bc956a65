package readonly

import (
	"context"

	"github.com/mwantia/resdb/backend"
	"github.com/mwantia/resdb/data"
	"github.com/mwantia/resdb/data/errors"
)

// ReadOnlyBackend wraps a metadata backend to make it read-only.
// All read operations are passed through to the underlying backend.
// All write operations return ErrReadOnly.
type ReadOnlyBackend struct {
	backend backend.MetadataBackend
}

// NewReadOnlyBackend creates a new read-only wrapper around the given backend.
func NewReadOnlyBackend(primary backend.MetadataBackend) *ReadOnlyBackend {
	return &ReadOnlyBackend{
		backend: primary,
	}
}

func (rob *ReadOnlyBackend) Name() string {
	return "readonly:" + rob.backend.Name()
}

func (rob *ReadOnlyBackend) Open(ctx context.Context) error {
	return rob.backend.Open(ctx)
}

func (rob *ReadOnlyBackend) Close(ctx context.Context) error {
	return rob.backend.Close(ctx)
}

func (rob *ReadOnlyBackend) GetCapabilities() *backend.Capabilities {
	return rob.backend.GetCapabilities()
}

func (rob *ReadOnlyBackend) ReadRecord(ctx context.Context, path string) (*data.Record, error) {
	return rob.backend.ReadRecord(ctx, path)
}

func (rob *ReadOnlyBackend) ExistsRecord(ctx context.Context, path string) (bool, error) {
	return rob.backend.ExistsRecord(ctx, path)
}

func (rob *ReadOnlyBackend) ListRecords(ctx context.Context, query *backend.ListQuery) ([]*data.Record, error) {
	return rob.backend.ListRecords(ctx, query)
}

func (rob *ReadOnlyBackend) Head(ctx context.Context) (string, error) {
	return rob.backend.Head(ctx)
}

func (rob *ReadOnlyBackend) ApplyChangeset(ctx context.Context, cs *data.Changeset) error {
	return data.ErrReadOnly
}

func (rob *ReadOnlyBackend) ReadHistory(ctx context.Context, limit int) ([]*data.CommitInfo, error) {
	history, ok := rob.backend.(backend.HistoryBackend)
	if !ok {
		return nil, errors.BackendUnsupported(data.ErrBackendUnsupported, rob.backend.Name())
	}
	return history.ReadHistory(ctx, limit)
}

func (rob *ReadOnlyBackend) ReadRevisions(ctx context.Context, path string) ([]*data.Revision, error) {
	history, ok := rob.backend.(backend.HistoryBackend)
	if !ok {
		return nil, errors.BackendUnsupported(data.ErrBackendUnsupported, rob.backend.Name())
	}
	return history.ReadRevisions(ctx, path)
}

func (rob *ReadOnlyBackend) PutBlob(ctx context.Context, hash string, payload []byte) error {
	return data.ErrReadOnly
}

func (rob *ReadOnlyBackend) GetBlob(ctx context.Context, hash string) ([]byte, error) {
	blobs, ok := rob.backend.(backend.BlobBackend)
	if !ok {
		return nil, errors.BackendUnsupported(data.ErrBackendUnsupported, rob.backend.Name())
	}
	return blobs.GetBlob(ctx, hash)
}

func (rob *ReadOnlyBackend) HasBlob(ctx context.Context, hash string) (bool, error) {
	blobs, ok := rob.backend.(backend.BlobBackend)
	if !ok {
		return false, errors.BackendUnsupported(data.ErrBackendUnsupported, rob.backend.Name())
	}
	return blobs.HasBlob(ctx, hash)
}
