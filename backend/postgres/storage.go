package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mwantia/resdb/data"
)

func (pb *PostgresBackend) PutBlob(ctx context.Context, hash string, payload []byte) error {
	_, err := pb.pool.Exec(ctx, `
		INSERT INTO resdb_blobs (hash, content, size, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (hash) DO NOTHING
	`, hash, payload, len(payload), time.Now().Unix())
	return err
}

func (pb *PostgresBackend) GetBlob(ctx context.Context, hash string) ([]byte, error) {
	var content []byte
	err := pb.pool.QueryRow(ctx, "SELECT content FROM resdb_blobs WHERE hash = $1", hash).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, data.ErrNotExist
	}
	if err != nil {
		return nil, err
	}

	return content, nil
}

func (pb *PostgresBackend) HasBlob(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := pb.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM resdb_blobs WHERE hash = $1)", hash).Scan(&exists)
	return exists, err
}
