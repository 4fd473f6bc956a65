package local

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mwantia/resdb/data"
)

func (lb *LocalBackend) PutBlob(ctx context.Context, hash string, payload []byte) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	fullPath := lb.resolvePath(hash)
	if _, err := os.Stat(fullPath); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}

	// Write aside and rename so a crash never leaves a truncated blob behind
	file, err := os.CreateTemp(filepath.Dir(fullPath), hash+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(file.Name())

	if _, err := file.Write(payload); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	return os.Rename(file.Name(), fullPath)
}

func (lb *LocalBackend) GetBlob(ctx context.Context, hash string) ([]byte, error) {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	payload, err := os.ReadFile(lb.resolvePath(hash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, data.ErrNotExist
		}
		return nil, err
	}

	return payload, nil
}

func (lb *LocalBackend) HasBlob(ctx context.Context, hash string) (bool, error) {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if _, err := os.Stat(lb.resolvePath(hash)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}
