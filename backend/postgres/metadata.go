package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mwantia/resdb/backend"
	"github.com/mwantia/resdb/data"
)

func (pb *PostgresBackend) ReadRecord(ctx context.Context, path string) (*data.Record, error) {
	// Check B-tree first
	pb.mu.RLock()
	exists := pb.paths.Contains(path)
	pb.mu.RUnlock()
	if !exists {
		return nil, data.ErrNotExist
	}

	var body string
	err := pb.pool.QueryRow(ctx, "SELECT body FROM resdb_records WHERE path = $1", path).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, data.ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	return data.UnmarshalRecord([]byte(body))
}

func (pb *PostgresBackend) ExistsRecord(ctx context.Context, path string) (bool, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	return pb.paths.Contains(path), nil
}

func (pb *PostgresBackend) ListRecords(ctx context.Context, query *backend.ListQuery) ([]*data.Record, error) {
	lower := query.LowerBound()
	// '0' sorts right after '/', so [lower, upper) holds exactly the descendants
	upper := lower[:len(lower)-1] + "0"

	rows, err := pb.pool.Query(ctx, `
		SELECT path, body FROM resdb_records
		WHERE path COLLATE "C" >= $1 AND path COLLATE "C" < $2
		ORDER BY path COLLATE "C"
	`, lower, upper)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	results := make([]*data.Record, 0)
	for rows.Next() {
		var path, body string
		if err := rows.Scan(&path, &body); err != nil {
			return nil, err
		}
		if !query.Matches(path) {
			continue
		}

		rec, err := data.UnmarshalRecord([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("failed to decode record '%s': %w", path, err)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return backend.Paginate(results, query), nil
}

func (pb *PostgresBackend) ApplyChangeset(ctx context.Context, cs *data.Changeset) error {
	paths, err := json.Marshal(cs.Commit.Paths)
	if err != nil {
		return err
	}

	tx, err := pb.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO resdb_commits (id, author_id, author_email, message, time, paths)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, cs.Commit.ID, cs.Commit.AuthorID, nullString(cs.Commit.AuthorEmail), cs.Commit.Message,
		cs.Commit.Time.UnixNano(), string(paths)); err != nil {
		return fmt.Errorf("failed to insert commit: %w", err)
	}

	now := time.Now().Unix()
	for hash, payload := range cs.Blobs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO resdb_blobs (hash, content, size, created_at) VALUES ($1, $2, $3, $4)
			ON CONFLICT (hash) DO NOTHING
		`, hash, payload, len(payload), now); err != nil {
			return fmt.Errorf("failed to insert blob '%s': %w", hash, err)
		}
	}

	deleted := make([]string, 0, len(cs.Deletes))
	for _, path := range cs.Deletes {
		tag, err := tx.Exec(ctx, "DELETE FROM resdb_records WHERE path = $1", path)
		if err != nil {
			return fmt.Errorf("failed to delete '%s': %w", path, err)
		}
		if tag.RowsAffected() == 0 {
			continue
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO resdb_revisions (commit_id, path, deleted) VALUES ($1, $2, TRUE)
		`, cs.Commit.ID, path); err != nil {
			return fmt.Errorf("failed to insert revision of '%s': %w", path, err)
		}
		deleted = append(deleted, path)
	}

	for _, rec := range cs.Puts {
		body, err := rec.Marshal()
		if err != nil {
			return fmt.Errorf("failed to encode '%s': %w", rec.Path, err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO resdb_records (path, class_id, class_version, body, modify_time)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (path) DO UPDATE SET
				class_id = EXCLUDED.class_id,
				class_version = EXCLUDED.class_version,
				body = EXCLUDED.body,
				modify_time = EXCLUDED.modify_time
		`, rec.Path, rec.ClassID, rec.ClassVersion, string(body), rec.ModifyTime.UnixNano()); err != nil {
			return fmt.Errorf("failed to write '%s': %w", rec.Path, err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO resdb_revisions (commit_id, path, deleted, body) VALUES ($1, $2, FALSE, $3)
		`, cs.Commit.ID, rec.Path, string(body)); err != nil {
			return fmt.Errorf("failed to insert revision of '%s': %w", rec.Path, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	pb.mu.Lock()
	defer pb.mu.Unlock()

	for _, path := range deleted {
		pb.paths.Delete(path)
	}
	for _, rec := range cs.Puts {
		pb.paths.Insert(rec.Path)
	}

	return nil
}

func (pb *PostgresBackend) Head(ctx context.Context) (string, error) {
	var id string
	err := pb.pool.QueryRow(ctx, "SELECT id FROM resdb_commits ORDER BY seq DESC LIMIT 1").Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}

	return id, err
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
