// Package catalog is the secondary search index derived from resource metadata.
//
// The catalog is mutated in two phases: Prepare performs every fallible step
// (validation and term encoding), Apply then swaps the prepared documents in and
// cannot fail. Callers commit their primary store between the two phases so
// both stay in lockstep.
package catalog

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/mwantia/resdb/log"
)

// Batch is a set of index and unindex operations applied together.
type Batch struct {
	Index   map[string]Document
	Unindex []string
	// Head is the commit the catalog reflects once the batch is applied.
	Head string
}

func NewBatch(head string) *Batch {
	return &Batch{
		Index: make(map[string]Document),
		Head:  head,
	}
}

func (b *Batch) Len() int {
	return len(b.Index) + len(b.Unindex)
}

// Prepared is a validated batch ready to be applied.
type Prepared struct {
	entries []*entry
	unindex []string
	head    string
}

// SearchOptions controls sorting and pagination of a search.
type SearchOptions struct {
	SortBy  string
	Reverse bool
	Start   int
	Size    int // 0 means all
}

type Hit struct {
	Path   string
	Fields map[string]any
}

type Result struct {
	Total int
	Hits  []Hit
}

// Paths returns the paths of the hits in result order.
func (r *Result) Paths() []string {
	paths := make([]string, len(r.Hits))
	for i, hit := range r.Hits {
		paths[i] = hit.Path
	}
	return paths
}

type Catalog struct {
	mu     sync.RWMutex
	schema Schema
	ix     *index
	head   string
	log    *log.Logger
}

type Option func(*Catalog)

func WithLogger(logger *log.Logger) Option {
	return func(c *Catalog) {
		c.log = logger
	}
}

func New(schema Schema, opts ...Option) *Catalog {
	if schema == nil {
		schema = DefaultSchema()
	}

	c := &Catalog{
		schema: schema,
		ix:     newIndex(),
		log:    log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Catalog) Schema() Schema {
	return c.schema
}

// Head returns the commit id the catalog currently reflects.
func (c *Catalog) Head() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.head
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.ix.docs)
}

// Paths returns every indexed path in lexical order.
func (c *Catalog) Paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	paths := make([]string, 0, len(c.ix.docs))
	for path := range c.ix.docs {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Get returns a copy of the raw document indexed for path.
func (c *Catalog) Get(path string) (Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.ix.docs[path]
	if !ok {
		return nil, false
	}
	return maps.Clone(e.raw), true
}

// Prepare validates and encodes every document of the batch without touching the index.
func (c *Catalog) Prepare(b *Batch) (*Prepared, error) {
	p := &Prepared{
		entries: make([]*entry, 0, len(b.Index)),
		unindex: append([]string(nil), b.Unindex...),
		head:    b.Head,
	}

	for path, doc := range b.Index {
		e, err := buildEntry(c.schema, path, doc)
		if err != nil {
			return nil, err
		}
		p.entries = append(p.entries, e)
	}

	return p, nil
}

// Apply swaps a prepared batch into the index. Unindex runs before index so a
// path present in both ends up indexed.
func (c *Catalog) Apply(p *Prepared) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, path := range p.unindex {
		c.ix.remove(path)
	}
	for _, e := range p.entries {
		c.ix.add(e)
	}
	if p.head != "" {
		c.head = p.head
	}

	c.log.Debug("applied %d documents, removed %d", len(p.entries), len(p.unindex))
}

// Index upserts a single document.
func (c *Catalog) Index(path string, doc Document) error {
	b := NewBatch("")
	b.Index[path] = doc

	p, err := c.Prepare(b)
	if err != nil {
		return err
	}
	c.Apply(p)
	return nil
}

// Unindex removes the document of path if present.
func (c *Catalog) Unindex(path string) {
	c.Apply(&Prepared{unindex: []string{path}})
}

// Search evaluates q and returns sorted, paginated hits with their stored fields.
func (c *Catalog) Search(q Query, opts SearchOptions) (*Result, error) {
	if q == nil {
		q = All()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	matched, err := q.eval(c.schema, c.ix)
	if err != nil {
		return nil, err
	}

	entries := make([]*entry, 0, len(matched))
	for path := range matched {
		if e, ok := c.ix.docs[path]; ok {
			entries = append(entries, e)
		}
	}
	sortEntries(entries, opts.SortBy, opts.Reverse)

	total := len(entries)
	start := min(max(opts.Start, 0), total)
	end := total
	if opts.Size > 0 {
		end = min(start+opts.Size, total)
	}

	result := &Result{
		Total: total,
		Hits:  make([]Hit, 0, end-start),
	}
	for _, e := range entries[start:end] {
		result.Hits = append(result.Hits, Hit{
			Path:   e.path,
			Fields: maps.Clone(e.stored),
		})
	}

	return result, nil
}

// sortEntries orders by the sort key of field; documents without it go last.
// Ties and the unsorted case fall back to path order.
func sortEntries(entries []*entry, field string, reverse bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		if field != "" {
			ki, iok := entries[i].sortKeys[field]
			kj, jok := entries[j].sortKeys[field]
			switch {
			case iok && !jok:
				return true
			case !iok && jok:
				return false
			case iok && jok && ki != kj:
				if reverse {
					return ki > kj
				}
				return ki < kj
			}
		}
		if reverse && field == "" {
			return entries[i].path > entries[j].path
		}
		return entries[i].path < entries[j].path
	})
}

// EmitFunc reports one document, or the error that prevented computing it.
type EmitFunc func(path string, doc Document, err error)

// Rebuild replaces the whole index with the documents produced by walk.
// The new index is built aside and only swapped in when the walk finished and
// no document failed; otherwise the previous index stays in place.
func (c *Catalog) Rebuild(ctx context.Context, head string, walk func(ctx context.Context, emit EmitFunc) error) (int, error) {
	fresh := newIndex()
	failed := 0

	emit := func(path string, doc Document, err error) {
		if err == nil {
			var e *entry
			e, err = buildEntry(c.schema, path, doc)
			if err == nil {
				fresh.add(e)
				return
			}
		}
		failed++
		c.log.Error("rebuild: failed to index '%s': %v", path, err)
	}

	if err := walk(ctx, emit); err != nil {
		return 0, fmt.Errorf("catalog rebuild aborted: %w", err)
	}
	if failed > 0 {
		return 0, fmt.Errorf("catalog rebuild failed for %d documents", failed)
	}

	c.mu.Lock()
	c.ix = fresh
	c.head = head
	c.mu.Unlock()

	c.log.Info("rebuild finished with %d documents", len(fresh.docs))
	return len(fresh.docs), nil
}
