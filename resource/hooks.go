package resource

import (
	"context"

	"github.com/mwantia/resdb/catalog"
)

// Finalizer recomputes derived fields right before the resource is indexed and stored.
type Finalizer interface {
	OnCommit(ctx context.Context, view View) error
}

// LinkUpdater rewrites stored references after a referenced resource moved.
// It reports whether anything changed.
type LinkUpdater interface {
	UpdateLinks(oldPath, newPath string) bool
}

// Mover is told its own previous location after it was moved.
type Mover interface {
	OnMoved(oldPath string)
}

// Linker overrides the links read from the record.
type Linker interface {
	Links() []string
}

// Dependent overrides the reindex dependencies read from the record.
type Dependent interface {
	Dependencies() []string
}

// Indexer contributes values beyond the built-in catalog fields.
type Indexer interface {
	IndexValues(ctx context.Context, view View) (catalog.Document, error)
}

// TimeEventHandler runs when the resource's next_time_event is due. A handler
// that leaves next_time_event untouched has its schedule cleared after the call.
// ctx carries the scheduler's transaction.
type TimeEventHandler interface {
	TimeEvent(ctx context.Context, tx Tx, payload string) error
}
