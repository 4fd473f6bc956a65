// Package pipeline turns the scratch state of a transaction into a store
// changeset and a catalog batch.
//
// Run reads only its explicit inputs and never writes to the store or the
// catalog; applying the results is left to the caller.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/mwantia/resdb/catalog"
	"github.com/mwantia/resdb/data"
	"github.com/mwantia/resdb/log"
	"github.com/mwantia/resdb/resource"
)

const DefaultReindexBatch = 200

type Input struct {
	Changes *Changes
	// View resolves paths as seen inside the transaction.
	View resource.View
	// Catalog is the committed index, used for link and dependency lookups.
	Catalog *catalog.Catalog

	AuthorID    string
	AuthorEmail string
	Message     string
	Method      string
	RequestPath string
	Time        time.Time
	NoTimestamp bool

	ReindexBatch int
	Logger       *log.Logger
}

// Stats describes the work done by a single run.
type Stats struct {
	Finalized    int
	LinksUpdated int
	Dependents   int
	Queries      int
}

// Run executes the commit pipeline. The returned changeset is empty when the
// transaction changed nothing.
func Run(ctx context.Context, in *Input) (*data.Changeset, *catalog.Batch, error) {
	cs, batch, _, err := RunWithStats(ctx, in)
	return cs, batch, err
}

func RunWithStats(ctx context.Context, in *Input) (*data.Changeset, *catalog.Batch, *Stats, error) {
	r := &run{
		in:    in,
		stats: &Stats{},
		log:   in.Logger,
	}
	if r.log == nil {
		r.log = log.Discard()
	}
	if in.Time.IsZero() {
		in.Time = time.Now().UTC()
	}

	steps := []func(context.Context) error{
		r.finalize,
		r.rewriteLinks,
		r.closure,
		r.partition,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, nil, nil, err
		}
		if err := step(ctx); err != nil {
			return nil, nil, nil, err
		}
	}

	r.stamp()

	cs, batch, err := r.assemble(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	return cs, batch, r.stats, nil
}

type run struct {
	in    *Input
	stats *Stats
	log   *log.Logger

	dependents []string
	index      map[string]resource.Resource
	unindex    []string
}

func (r *run) finalize(ctx context.Context) error {
	for _, p := range data.SortedPaths(r.in.Changes.NewPaths) {
		res := r.in.Changes.NewPaths[p]
		if fin, ok := res.(resource.Finalizer); ok {
			if err := fin.OnCommit(ctx, r.in.View); err != nil {
				return fmt.Errorf("finalize '%s': %w", p, err)
			}
			r.stats.Finalized++
		}
	}
	return nil
}

// rewriteLinks walks the moves in order of their new path and rewrites every
// resource that referenced the old location.
func (r *run) rewriteLinks(ctx context.Context) error {
	changes := r.in.Changes
	moves := data.SortedPaths(changes.MovedNewToOld)

	for _, newPath := range moves {
		oldPath := changes.MovedNewToOld[newPath]

		if res, ok := changes.NewPaths[newPath]; ok {
			if m, ok := res.(resource.Mover); ok {
				m.OnMoved(oldPath)
			}
		}

		result, err := r.search(catalog.Equal(catalog.FieldLinks, oldPath))
		if err != nil {
			return err
		}

		for _, committed := range result.Paths() {
			if changes.IsRemoved(committed) {
				continue
			}

			current := changes.CurrentPath(committed)
			res, err := r.in.View.Get(ctx, current)
			if err != nil {
				if errors.Is(err, data.ErrNotExist) {
					continue
				}
				return fmt.Errorf("load referrer '%s': %w", current, err)
			}
			r.updateLinks(res, oldPath, newPath)
		}

		// Resources created in this transaction are not in the catalog yet.
		for _, p := range data.SortedPaths(changes.NewPaths) {
			r.updateLinks(changes.NewPaths[p], oldPath, newPath)
		}
	}

	return nil
}

func (r *run) updateLinks(res resource.Resource, oldPath, newPath string) {
	updater, ok := res.(resource.LinkUpdater)
	if !ok {
		return
	}
	if updater.UpdateLinks(oldPath, newPath) {
		r.log.Debug("rewrote links of '%s' from '%s' to '%s'", res.Path(), oldPath, newPath)
		r.in.Changes.Stage(res)
		r.stats.LinksUpdated++
	}
}

// closure collects every resource that declared a dependency on a touched
// path, transitively. Each path is queued at most once, so cycles end.
func (r *run) closure(_ context.Context) error {
	changes := r.in.Changes

	seen := make(map[string]struct{})
	var frontier []string
	enqueue := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			frontier = append(frontier, p)
		}
	}

	for _, p := range data.SortedPaths(changes.Removed) {
		enqueue(p)
	}
	for _, p := range data.SortedPaths(changes.MovedOldToNew) {
		enqueue(p)
	}
	for _, p := range data.SortedPaths(changes.NewPaths) {
		enqueue(p)
	}

	size := r.in.ReindexBatch
	if size <= 0 {
		size = DefaultReindexBatch
	}

	for len(frontier) > 0 {
		current := frontier
		frontier = nil

		for chunk := range slices.Chunk(current, size) {
			result, err := r.search(catalog.In(catalog.FieldOnChangeReindex, chunk...))
			if err != nil {
				return err
			}

			for _, hit := range result.Paths() {
				if _, ok := seen[hit]; !ok {
					r.dependents = append(r.dependents, hit)
				}
				enqueue(hit)
			}
		}
	}

	sort.Strings(r.dependents)
	r.stats.Dependents = len(r.dependents)
	return nil
}

func (r *run) partition(ctx context.Context) error {
	changes := r.in.Changes
	r.index = make(map[string]resource.Resource, len(changes.NewPaths)+len(r.dependents))

	for p, res := range changes.NewPaths {
		r.index[p] = res
	}

	for _, committed := range r.dependents {
		if changes.IsRemoved(committed) {
			continue
		}

		current := changes.CurrentPath(committed)
		if _, ok := r.index[current]; ok {
			continue
		}

		res, err := r.in.View.Get(ctx, current)
		if err != nil {
			if errors.Is(err, data.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load dependent '%s': %w", current, err)
		}
		r.index[current] = res
	}

	gone := make(map[string]struct{}, len(changes.Removed)+len(changes.MovedOldToNew))
	for p := range changes.Removed {
		gone[p] = struct{}{}
	}
	for p := range changes.MovedOldToNew {
		gone[p] = struct{}{}
	}
	for _, p := range data.SortedPaths(gone) {
		if _, recreated := r.index[p]; !recreated {
			r.unindex = append(r.unindex, p)
		}
	}

	return nil
}

func (r *run) stamp() {
	if r.in.NoTimestamp {
		return
	}

	author := r.author()
	for _, res := range r.in.Changes.NewPaths {
		rec := res.Record()
		if rec.Dirty() {
			rec.ModifyTime = r.in.Time
			rec.LastAuthor = author
		}
	}
}

func (r *run) author() string {
	if r.in.AuthorID == "" {
		return data.AnonymousAuthor
	}
	return r.in.AuthorID
}

func (r *run) message() string {
	switch {
	case r.in.Message != "":
		return r.in.Message
	case r.in.Method != "" || r.in.RequestPath != "":
		return fmt.Sprintf("%s %s", r.in.Method, r.in.RequestPath)
	default:
		return "commit"
	}
}

func (r *run) assemble(ctx context.Context) (*data.Changeset, *catalog.Batch, error) {
	changes := r.in.Changes
	commitID := data.NewCommitID()

	cs := &data.Changeset{
		Commit: data.CommitInfo{
			ID:          commitID,
			AuthorID:    r.author(),
			AuthorEmail: r.in.AuthorEmail,
			Message:     r.message(),
			Time:        r.in.Time,
		},
		Deletes: r.unindex,
		Blobs:   make(map[string][]byte),
	}

	touched := make(map[string]struct{})
	for _, p := range data.SortedPaths(changes.NewPaths) {
		rec := changes.NewPaths[p].Record()
		if rec.Path != p {
			return nil, nil, fmt.Errorf("staged resource '%s' reports path '%s'", p, rec.Path)
		}

		put := rec.Clone()
		put.ClearDirty()
		cs.Puts = append(cs.Puts, put)
		touched[p] = struct{}{}

		for _, h := range put.Handlers {
			if payload, ok := changes.Blobs[h.Hash]; ok {
				cs.Blobs[h.Hash] = payload
			}
		}
	}
	for _, p := range cs.Deletes {
		touched[p] = struct{}{}
	}
	cs.Commit.Paths = data.SortedPaths(touched)

	batch := catalog.NewBatch(commitID)
	batch.Unindex = r.unindex
	for _, p := range data.SortedPaths(r.index) {
		doc, err := resource.IndexValues(ctx, r.in.View, r.index[p])
		if err != nil {
			return nil, nil, fmt.Errorf("index '%s': %w", p, err)
		}
		batch.Index[p] = doc
	}

	return cs, batch, nil
}

func (r *run) search(q catalog.Query) (*catalog.Result, error) {
	r.stats.Queries++

	result, err := r.in.Catalog.Search(q, catalog.SearchOptions{})
	if err != nil {
		return nil, fmt.Errorf("catalog query %s: %w", q, err)
	}
	return result, nil
}
