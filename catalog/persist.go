package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const snapshotVersion = 1

type snapshot struct {
	Version   int                 `json:"version"`
	Head      string              `json:"head"`
	SavedAt   time.Time           `json:"saved_at"`
	Documents map[string]Document `json:"documents"`
}

// Save writes the whole catalog to path. The file is written aside and renamed
// into place, so readers never observe a partial catalog.
func (c *Catalog) Save(path string) error {
	c.mu.RLock()
	snap := snapshot{
		Version:   snapshotVersion,
		Head:      c.head,
		SavedAt:   time.Now().UTC(),
		Documents: make(map[string]Document, len(c.ix.docs)),
	}
	for p, e := range c.ix.docs {
		snap.Documents[p] = e.raw
	}
	c.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create catalog file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(&snap); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace catalog: %w", err)
	}

	c.log.Debug("saved %d documents at head '%s'", len(snap.Documents), snap.Head)
	return nil
}

// Load replaces the in-memory index with the catalog stored at path.
// A missing file is reported with os.ErrNotExist.
func (c *Catalog) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var snap snapshot
	decoder := json.NewDecoder(f)
	decoder.UseNumber()
	if err := decoder.Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode catalog: %w", err)
	}

	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported catalog version %d", snap.Version)
	}

	fresh := newIndex()
	for p, doc := range snap.Documents {
		e, err := buildEntry(c.schema, p, doc)
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		fresh.add(e)
	}

	c.mu.Lock()
	c.ix = fresh
	c.head = snap.Head
	c.mu.Unlock()

	return nil
}
