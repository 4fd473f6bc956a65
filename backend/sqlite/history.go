package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mwantia/resdb/data"
)

func (sb *SQLiteBackend) ReadHistory(ctx context.Context, limit int) ([]*data.CommitInfo, error) {
	query := "SELECT id, author_id, author_email, message, time, paths FROM resdb_commits ORDER BY seq DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := sb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*data.CommitInfo, 0)
	for rows.Next() {
		var commit data.CommitInfo
		var email, paths sql.NullString
		var unixNano int64

		if err := rows.Scan(&commit.ID, &commit.AuthorID, &email, &commit.Message, &unixNano, &paths); err != nil {
			return nil, err
		}

		commit.AuthorEmail = email.String
		commit.Time = time.Unix(0, unixNano).UTC()
		if paths.Valid && paths.String != "" {
			if err := json.Unmarshal([]byte(paths.String), &commit.Paths); err != nil {
				return nil, err
			}
		}
		results = append(results, &commit)
	}

	return results, rows.Err()
}

func (sb *SQLiteBackend) ReadRevisions(ctx context.Context, path string) ([]*data.Revision, error) {
	rows, err := sb.db.QueryContext(ctx, `
		SELECT r.commit_id, c.time, r.deleted, r.body
		FROM resdb_revisions r JOIN resdb_commits c ON c.id = r.commit_id
		WHERE r.path = ?
		ORDER BY r.seq
	`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*data.Revision, 0)
	for rows.Next() {
		var rev data.Revision
		var body sql.NullString
		var unixNano int64

		if err := rows.Scan(&rev.CommitID, &unixNano, &rev.Deleted, &body); err != nil {
			return nil, err
		}

		rev.Time = time.Unix(0, unixNano).UTC()
		if body.Valid {
			if rev.Record, err = data.UnmarshalRecord([]byte(body.String)); err != nil {
				return nil, err
			}
		}
		results = append(results, &rev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return nil, data.ErrNotExist
	}
	return results, nil
}
