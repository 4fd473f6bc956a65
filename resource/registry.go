package resource

import (
	"fmt"
	"sync"

	"github.com/mwantia/resdb/data"
	"github.com/mwantia/resdb/data/errors"
)

// DefaultClass is the class id of plain resources without own behaviour.
const DefaultClass = "resource"

// Kind binds a class id to the code handling its records.
type Kind struct {
	ClassID string
	// Version is the current on-disk shape of the class.
	Version int
	New     func(rec *data.Record) Resource
	// Upgrade migrates a record written by an older version in place.
	Upgrade func(rec *data.Record, from int) error
}

// DefaultKind wraps records into a Base.
var DefaultKind = Kind{
	ClassID: DefaultClass,
	Version: 1,
	New: func(rec *data.Record) Resource {
		return NewBase(rec)
	},
}

type Registry struct {
	mu       sync.RWMutex
	kinds    map[string]Kind
	fallback string
}

// NewRegistry returns a registry holding DefaultKind plus kinds, with
// DefaultKind as fallback for unknown class ids.
func NewRegistry(kinds ...Kind) (*Registry, error) {
	r := &Registry{
		kinds:    make(map[string]Kind),
		fallback: DefaultClass,
	}

	for _, kind := range append([]Kind{DefaultKind}, kinds...) {
		if err := r.Register(kind); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds or replaces a kind.
func (r *Registry) Register(kind Kind) error {
	if kind.ClassID == "" || kind.New == nil {
		return fmt.Errorf("resource kind needs a class id and a constructor")
	}
	if kind.Version < 1 {
		kind.Version = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.kinds[kind.ClassID] = kind
	return nil
}

// SetFallback sets the class used for unknown class ids. An empty id makes
// unknown classes an error.
func (r *Registry) SetFallback(classID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fallback = classID
}

func (r *Registry) Kind(classID string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kind, ok := r.kinds[classID]
	return kind, ok
}

// NewRecord creates an empty record at the current version of classID.
func (r *Registry) NewRecord(path, classID string) (*data.Record, error) {
	kind, ok := r.Kind(classID)
	if !ok {
		return nil, errors.UnknownClass(data.ErrUnknownClass, classID, path)
	}
	return data.NewRecord(path, classID, kind.Version), nil
}

// Resolve builds the resource for rec. Records of an older class version are
// upgraded in place and marked dirty so the next commit persists the new shape.
func (r *Registry) Resolve(rec *data.Record) (Resource, error) {
	kind, ok := r.Kind(rec.ClassID)
	if !ok {
		r.mu.RLock()
		fallback := r.fallback
		r.mu.RUnlock()

		if kind, ok = r.Kind(fallback); !ok || fallback == "" {
			return nil, errors.UnknownClass(data.ErrUnknownClass, rec.ClassID, rec.Path)
		}
		return kind.New(rec), nil
	}

	if rec.ClassVersion < kind.Version {
		if kind.Upgrade != nil {
			if err := kind.Upgrade(rec, rec.ClassVersion); err != nil {
				return nil, fmt.Errorf("failed to upgrade '%s' from version %d: %w", rec.Path, rec.ClassVersion, err)
			}
		}
		rec.ClassVersion = kind.Version
		rec.MarkDirty()
	}

	return kind.New(rec), nil
}
