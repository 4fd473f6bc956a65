package sqlite

import (
	"context"
	"database/sql"
	"sync"

	"github.com/mwantia/resdb/backend"
	"github.com/tidwall/btree"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteBackend stores resources in SQLite with a two-layer architecture:
//
// Layer 1: In-memory B-tree of every live path (fast existence checks and ordered listings)
// Layer 2: SQLite tables for records, content-addressed blobs, commits and revisions
//
// Every changeset is applied inside one SQL transaction, so a failed commit leaves
// no trace in any table.
type SQLiteBackend struct {
	mu sync.RWMutex
	db *sql.DB

	// In-memory B-tree of live paths
	paths *btree.Set[string]
}

// NewSQLiteBackend creates a new SQLite-backed resource backend.
// The dbPath can be ":memory:" for an in-memory database or a file path.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// A single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	// Enable foreign keys for referential integrity
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteBackend{
		db:    db,
		paths: &btree.Set[string]{},
	}, nil
}

// Returns the identifier name defined for this backend
func (*SQLiteBackend) Name() string {
	return "sqlite"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *SQLiteBackend) Open(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	// Verify database connection
	if err := sb.db.PingContext(ctx); err != nil {
		return err
	}

	// Load all paths into memory B-tree
	rows, err := sb.db.QueryContext(ctx, "SELECT path FROM resdb_records")
	if err != nil {
		return err
	}
	defer rows.Close()

	sb.paths.Clear()
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return err
		}
		sb.paths.Insert(path)
	}

	return rows.Err()
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *SQLiteBackend) Close(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.paths.Clear()
	return sb.db.Close()
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *SQLiteBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityMetadata,
			backend.CapabilityBlob,
			backend.CapabilityHistory,
		},
	}
}
