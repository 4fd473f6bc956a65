package pipeline

import (
	"maps"

	"github.com/mwantia/resdb/data"
	"github.com/mwantia/resdb/resource"
)

// Changes is the scratch state of one transaction. It only ever lives as long
// as its transaction and is reset on commit and abort.
type Changes struct {
	// NewPaths holds resources created or dirtied, keyed by their current path.
	NewPaths map[string]resource.Resource
	// MovedOldToNew and MovedNewToOld are inverse maps of committed paths to
	// where they live now. Chained moves collapse into one entry.
	MovedOldToNew map[string]string
	MovedNewToOld map[string]string
	// Removed holds committed paths that will no longer exist.
	Removed map[string]struct{}
	// Blobs holds staged handler payloads by content hash.
	Blobs map[string][]byte
}

func NewChanges() *Changes {
	c := &Changes{}
	c.Reset()
	return c
}

func (c *Changes) Reset() {
	c.NewPaths = make(map[string]resource.Resource)
	c.MovedOldToNew = make(map[string]string)
	c.MovedNewToOld = make(map[string]string)
	c.Removed = make(map[string]struct{})
	c.Blobs = make(map[string][]byte)
}

func (c *Changes) Empty() bool {
	return len(c.NewPaths) == 0 && len(c.MovedOldToNew) == 0 && len(c.Removed) == 0
}

// Stage records res as changed under its current path.
func (c *Changes) Stage(res resource.Resource) {
	res.Record().MarkDirty()
	delete(c.Removed, res.Path())
	c.NewPaths[res.Path()] = res
}

// Move records that whatever lived at oldPath now lives at newPath.
// A move back to the original location cancels out.
func (c *Changes) Move(oldPath, newPath string) {
	origin := oldPath
	if o, ok := c.MovedNewToOld[oldPath]; ok {
		origin = o
		delete(c.MovedNewToOld, oldPath)
	}

	if res, ok := c.NewPaths[oldPath]; ok {
		delete(c.NewPaths, oldPath)
		c.NewPaths[newPath] = res
	}

	if origin == newPath {
		delete(c.MovedOldToNew, origin)
		return
	}
	c.MovedOldToNew[origin] = newPath
	c.MovedNewToOld[newPath] = origin
}

// Remove records that path and the committed path it was moved from are gone.
func (c *Changes) Remove(path string) {
	delete(c.NewPaths, path)
	c.Removed[path] = struct{}{}

	if origin, ok := c.MovedNewToOld[path]; ok {
		delete(c.MovedNewToOld, path)
		delete(c.MovedOldToNew, origin)
		c.Removed[origin] = struct{}{}
	}
}

// IsRemoved reports whether path is gone after this transaction.
func (c *Changes) IsRemoved(path string) bool {
	_, removed := c.Removed[path]
	return removed
}

// CurrentPath maps a committed path to where it lives in this transaction.
func (c *Changes) CurrentPath(committed string) string {
	if moved, ok := c.MovedOldToNew[committed]; ok {
		return moved
	}
	return committed
}

// StageBlob keeps a payload until commit and returns its content address.
func (c *Changes) StageBlob(payload []byte) string {
	hash := data.HashBlob(payload)
	c.Blobs[hash] = payload
	return hash
}

// Paths returns every path touched so far, sorted.
func (c *Changes) Paths() []string {
	touched := make(map[string]struct{}, len(c.NewPaths)+len(c.Removed)+len(c.MovedOldToNew))
	for p := range c.NewPaths {
		touched[p] = struct{}{}
	}
	maps.Copy(touched, c.Removed)
	for p := range c.MovedOldToNew {
		touched[p] = struct{}{}
	}
	return data.SortedPaths(touched)
}
