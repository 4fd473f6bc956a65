package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mwantia/resdb/data"
)

func (sb *SQLiteBackend) PutBlob(ctx context.Context, hash string, payload []byte) error {
	_, err := sb.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO resdb_blobs (hash, content, size, created_at) VALUES (?, ?, ?, ?)
	`, hash, payload, len(payload), time.Now().Unix())
	return err
}

func (sb *SQLiteBackend) GetBlob(ctx context.Context, hash string) ([]byte, error) {
	var content []byte
	err := sb.db.QueryRowContext(ctx, "SELECT content FROM resdb_blobs WHERE hash = ?", hash).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, data.ErrNotExist
	}
	if err != nil {
		return nil, err
	}

	return content, nil
}

func (sb *SQLiteBackend) HasBlob(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := sb.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM resdb_blobs WHERE hash = ?)", hash).Scan(&exists)
	return exists, err
}
