package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mwantia/resdb/backend"
	"github.com/mwantia/resdb/data"
)

func (sb *SQLiteBackend) ReadRecord(ctx context.Context, path string) (*data.Record, error) {
	// Check B-tree first
	sb.mu.RLock()
	exists := sb.paths.Contains(path)
	sb.mu.RUnlock()
	if !exists {
		return nil, data.ErrNotExist
	}

	var body string
	err := sb.db.QueryRowContext(ctx, "SELECT body FROM resdb_records WHERE path = ?", path).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, data.ErrNotExist
	}
	if err != nil {
		return nil, err
	}

	return data.UnmarshalRecord([]byte(body))
}

func (sb *SQLiteBackend) ExistsRecord(ctx context.Context, path string) (bool, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	return sb.paths.Contains(path), nil
}

func (sb *SQLiteBackend) ListRecords(ctx context.Context, query *backend.ListQuery) ([]*data.Record, error) {
	lower := query.LowerBound()
	// '0' sorts right after '/', so [lower, upper) holds exactly the descendants
	upper := lower[:len(lower)-1] + "0"

	rows, err := sb.db.QueryContext(ctx, `
		SELECT path, body FROM resdb_records
		WHERE path >= ? AND path < ?
		ORDER BY path
	`, lower, upper)
	if err != nil {
		return nil, err
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

// ApplyChangeset writes blobs, records, revisions and the commit row in a single
// SQL transaction. The path B-tree is only updated once that transaction committed.
func (sb *SQLiteBackend) ApplyChangeset(ctx context.Context, cs *data.Changeset) error {
	paths, err := json.Marshal(cs.Commit.Paths)
	if err != nil {
		return err
	}

	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO resdb_commits (id, author_id, author_email, message, time, paths)
		VALUES (?, ?, ?, ?, ?, ?)
	`, cs.Commit.ID, cs.Commit.AuthorID, nullString(cs.Commit.AuthorEmail), cs.Commit.Message,
		cs.Commit.Time.UnixNano(), string(paths)); err != nil {
		return fmt.Errorf("failed to insert commit: %w", err)
	}

	now := time.Now().Unix()
	for hash, payload := range cs.Blobs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO resdb_blobs (hash, content, size, created_at) VALUES (?, ?, ?, ?)
		`, hash, payload, len(payload), now); err != nil {
			return fmt.Errorf("failed to insert blob '%s': %w", hash, err)
		}
	}

	deleted := make([]string, 0, len(cs.Deletes))
	for _, path := range cs.Deletes {
		result, err := tx.ExecContext(ctx, "DELETE FROM resdb_records WHERE path = ?", path)
		if err != nil {
			return fmt.Errorf("failed to delete '%s': %w", path, err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			continue
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO resdb_revisions (commit_id, path, deleted) VALUES (?, ?, 1)
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

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO resdb_records (path, class_id, class_version, body, modify_time)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				class_id = excluded.class_id,
				class_version = excluded.class_version,
				body = excluded.body,
				modify_time = excluded.modify_time
		`, rec.Path, rec.ClassID, rec.ClassVersion, string(body), rec.ModifyTime.UnixNano()); err != nil {
			return fmt.Errorf("failed to write '%s': %w", rec.Path, err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO resdb_revisions (commit_id, path, deleted, body) VALUES (?, ?, 0, ?)
		`, cs.Commit.ID, rec.Path, string(body)); err != nil {
			return fmt.Errorf("failed to insert revision of '%s': %w", rec.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()

	for _, path := range deleted {
		sb.paths.Delete(path)
	}
	for _, rec := range cs.Puts {
		sb.paths.Insert(rec.Path)
	}

	return nil
}

func (sb *SQLiteBackend) Head(ctx context.Context) (string, error) {
	var id string
	err := sb.db.QueryRowContext(ctx, "SELECT id FROM resdb_commits ORDER BY seq DESC LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}

	return id, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
