package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mwantia/resdb/data"
)

func (pb *PostgresBackend) ReadHistory(ctx context.Context, limit int) ([]*data.CommitInfo, error) {
	query := "SELECT id, author_id, author_email, message, time, paths FROM resdb_commits ORDER BY seq DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := pb.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer rows.Close()

	results := make([]*data.CommitInfo, 0)
	for rows.Next() {
		var commit data.CommitInfo
		var email, paths *string
		var unixNano int64

		if err := rows.Scan(&commit.ID, &commit.AuthorID, &email, &commit.Message, &unixNano, &paths); err != nil {
			return nil, err
		}

		if email != nil {
			commit.AuthorEmail = *email
		}
		commit.Time = time.Unix(0, unixNano).UTC()
		if paths != nil && *paths != "" {
			if err := json.Unmarshal([]byte(*paths), &commit.Paths); err != nil {
				return nil, err
			}
		}
		results = append(results, &commit)
	}

	return results, rows.Err()
}

func (pb *PostgresBackend) ReadRevisions(ctx context.Context, path string) ([]*data.Revision, error) {
	rows, err := pb.pool.Query(ctx, `
		SELECT r.commit_id, c.time, r.deleted, r.body
		FROM resdb_revisions r JOIN resdb_commits c ON c.id = r.commit_id
		WHERE r.path = $1
		ORDER BY r.seq
	`, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read revisions: %w", err)
	}
	defer rows.Close()

	results := make([]*data.Revision, 0)
	for rows.Next() {
		var rev data.Revision
		var body *string
		var unixNano int64

		if err := rows.Scan(&rev.CommitID, &unixNano, &rev.Deleted, &body); err != nil {
			return nil, err
		}

		rev.Time = time.Unix(0, unixNano).UTC()
		if body != nil {
			if rev.Record, err = data.UnmarshalRecord([]byte(*body)); err != nil {
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
