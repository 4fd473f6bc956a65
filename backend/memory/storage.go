package memory

import (
	"context"

	"github.com/mwantia/resdb/backend"
	"github.com/mwantia/resdb/data"
)

func (mb *MemoryBackend) PutBlob(ctx context.Context, hash string, payload []byte) error {
	if err := backend.CheckBlobSize(hash, len(payload), mb.maxObjectSize); err != nil {
		return err
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	if _, exists := mb.blobs[hash]; !exists {
		mb.blobs[hash] = append([]byte(nil), payload...)
	}
	return nil
}

func (mb *MemoryBackend) GetBlob(ctx context.Context, hash string) ([]byte, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	payload, exists := mb.blobs[hash]
	if !exists {
		return nil, data.ErrNotExist
	}
	return append([]byte(nil), payload...), nil
}

func (mb *MemoryBackend) HasBlob(ctx context.Context, hash string) (bool, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	_, exists := mb.blobs[hash]
	return exists, nil
}
