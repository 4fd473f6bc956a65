package backend

import (
	"context"

	"github.com/mwantia/resdb/data"
	"github.com/mwantia/resdb/data/errors"
)

// BlobBackend stores handler payloads by content hash. Writes are idempotent.
type BlobBackend interface {
	Backend

	PutBlob(ctx context.Context, hash string, payload []byte) error

	GetBlob(ctx context.Context, hash string) ([]byte, error)

	HasBlob(ctx context.Context, hash string) (bool, error)
}

// CheckBlobSize rejects payloads above limit. A limit of 0 accepts everything.
func CheckBlobSize(hash string, size int, limit int64) error {
	if limit > 0 && int64(size) > limit {
		return errors.BlobTooLarge(data.ErrTooLarge, hash, int64(size), limit)
	}
	return nil
}
