package resdb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mwantia/resdb/catalog"
	"github.com/mwantia/resdb/data"
	rerrors "github.com/mwantia/resdb/data/errors"
	"github.com/mwantia/resdb/gate"
	"github.com/mwantia/resdb/log"
	"github.com/mwantia/resdb/pipeline"
	"github.com/mwantia/resdb/resource"
)

// Transaction is a unit of work admitted by the gate. It is bound to the
// goroutine that began it and is not safe for concurrent use.
type Transaction struct {
	db      *Database
	ctx     context.Context
	handle  *gate.Handle
	options *TxOptions

	changes *pipeline.Changes
	// cache holds every resource resolved in this transaction by current path.
	cache map[string]resource.Resource

	done atomic.Bool
}

var _ resource.Tx = (*Transaction)(nil)

func newTransaction(ctx context.Context, db *Database, handle *gate.Handle, opts ...TxOption) *Transaction {
	options := &TxOptions{}
	for _, opt := range opts {
		opt(options)
	}

	tx := &Transaction{
		db:      db,
		handle:  handle,
		options: options,
		changes: pipeline.NewChanges(),
		cache:   make(map[string]resource.Resource),
	}
	tx.ctx = context.WithValue(ctx, txKey{}, tx)

	return tx
}

// Context returns a context carrying this transaction.
func (t *Transaction) Context() context.Context {
	return t.ctx
}

func (t *Transaction) Mode() gate.Mode {
	return t.handle.Mode()
}

func (t *Transaction) Done() bool {
	return t.done.Load()
}

func (t *Transaction) check(write bool) error {
	if t.Done() {
		return data.ErrTxDone
	}
	if write && t.Mode() != gate.ReadWrite {
		return data.ErrReadOnly
	}
	return nil
}

// Get returns the resource at path as seen by this transaction.
func (t *Transaction) Get(ctx context.Context, path string) (resource.Resource, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	clean, err := data.CleanPath(path)
	if err != nil {
		return nil, err
	}
	return t.get(ctx, clean)
}

func (t *Transaction) get(ctx context.Context, path string) (resource.Resource, error) {
	if res, ok := t.changes.NewPaths[path]; ok {
		return res, nil
	}
	if res, ok := t.cache[path]; ok {
		return res, nil
	}
	if t.isGone(path) || path == data.RootPath {
		return nil, rerrors.PathNotExist(data.ErrNotExist, path)
	}

	rec, err := t.db.store.Load(ctx, path)
	if err != nil {
		if errors.Is(err, data.ErrNotExist) {
			return nil, rerrors.PathNotExist(data.ErrNotExist, path)
		}
		return nil, err
	}

	res, err := t.db.registry.Resolve(rec)
	if err != nil {
		return nil, err
	}

	t.cache[path] = res
	return res, nil
}

// isGone reports whether a committed path was removed or moved away.
func (t *Transaction) isGone(path string) bool {
	if _, staged := t.changes.NewPaths[path]; staged {
		return false
	}
	if t.changes.IsRemoved(path) {
		return true
	}
	_, moved := t.changes.MovedOldToNew[path]
	return moved
}

func (t *Transaction) exists(ctx context.Context, path string) (bool, error) {
	if path == data.RootPath {
		return true, nil
	}
	if _, ok := t.changes.NewPaths[path]; ok {
		return true, nil
	}
	if t.isGone(path) {
		return false, nil
	}
	if _, ok := t.cache[path]; ok {
		return true, nil
	}
	return t.db.store.Exists(ctx, path)
}

// subtree returns path and every visible descendant, sorted.
func (t *Transaction) subtree(ctx context.Context, path string) ([]string, error) {
	set := map[string]struct{}{path: {}}

	err := t.db.store.Walk(ctx, path, func(rec *data.Record) error {
		if !t.isGone(rec.Path) {
			set[rec.Path] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for p := range t.changes.NewPaths {
		if data.IsAncestor(path, p) {
			set[p] = struct{}{}
		}
	}

	return data.SortedPaths(set), nil
}

// children returns the names of the visible direct children of parent.
func (t *Transaction) children(ctx context.Context, parent string) (map[string]struct{}, error) {
	names := make(map[string]struct{})

	records, err := t.db.store.Children(ctx, parent)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if !t.isGone(rec.Path) {
			names[data.BaseName(rec.Path)] = struct{}{}
		}
	}

	for p := range t.changes.NewPaths {
		if p != data.RootPath && data.ParentPath(p) == parent {
			names[data.BaseName(p)] = struct{}{}
		}
	}

	return names, nil
}

// nextName returns one more than the highest integer name below parent.
func (t *Transaction) nextName(ctx context.Context, parent string) (string, error) {
	names, err := t.children(ctx, parent)
	if err != nil {
		return "", err
	}

	next := 1
	for name := range names {
		if n, err := strconv.Atoi(name); err == nil && n >= next {
			next = n + 1
		}
	}
	return strconv.Itoa(next), nil
}

// Children returns the visible direct children of path ordered by name.
func (t *Transaction) Children(ctx context.Context, path string) ([]resource.Resource, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	path, err := data.CleanPath(path)
	if err != nil {
		return nil, err
	}
	if ok, err := t.exists(ctx, path); err != nil {
		return nil, err
	} else if !ok {
		return nil, rerrors.PathNotExist(data.ErrNotExist, path)
	}

	names, err := t.children(ctx, path)
	if err != nil {
		return nil, err
	}

	children := make([]resource.Resource, 0, len(names))
	for _, name := range data.SortedPaths(names) {
		res, err := t.get(ctx, data.JoinPath(path, name))
		if err != nil {
			return nil, err
		}
		children = append(children, res)
	}
	return children, nil
}

// Record returns the record at path as seen by this transaction without
// resolving its class, so records of unregistered kinds stay readable.
func (t *Transaction) Record(ctx context.Context, path string) (*data.Record, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	clean, err := data.CleanPath(path)
	if err != nil {
		return nil, err
	}
	return t.record(ctx, clean)
}

func (t *Transaction) record(ctx context.Context, path string) (*data.Record, error) {
	if res, ok := t.changes.NewPaths[path]; ok {
		return res.Record(), nil
	}
	if res, ok := t.cache[path]; ok {
		return res.Record(), nil
	}
	if t.isGone(path) || path == data.RootPath {
		return nil, rerrors.PathNotExist(data.ErrNotExist, path)
	}

	rec, err := t.db.store.Load(ctx, path)
	if errors.Is(err, data.ErrNotExist) {
		return nil, rerrors.PathNotExist(data.ErrNotExist, path)
	}
	return rec, err
}

// ChildRecords is Children without class resolution.
func (t *Transaction) ChildRecords(ctx context.Context, path string) ([]*data.Record, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	path, err := data.CleanPath(path)
	if err != nil {
		return nil, err
	}
	if ok, err := t.exists(ctx, path); err != nil {
		return nil, err
	} else if !ok {
		return nil, rerrors.PathNotExist(data.ErrNotExist, path)
	}

	names, err := t.children(ctx, path)
	if err != nil {
		return nil, err
	}

	records := make([]*data.Record, 0, len(names))
	for _, name := range data.SortedPaths(names) {
		rec, err := t.record(ctx, data.JoinPath(path, name))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Create adds a new resource of classID below parent. An empty name picks
// the next free integer.
func (t *Transaction) Create(ctx context.Context, parent, name, classID string, props map[string][]data.Property) (resource.Resource, error) {
	if err := t.check(true); err != nil {
		return nil, err
	}

	parent, err := data.CleanPath(parent)
	if err != nil {
		return nil, err
	}
	if ok, err := t.exists(ctx, parent); err != nil {
		return nil, err
	} else if !ok {
		return nil, rerrors.PathNotExist(data.ErrNotExist, parent)
	}

	if name == "" {
		if name, err = t.nextName(ctx, parent); err != nil {
			return nil, err
		}
	}
	if name == "." || name == ".." || strings.Contains(name, "/") {
		return nil, rerrors.InvalidPath(data.ErrInvalidPath, name)
	}
	if classID == "" {
		classID = resource.DefaultClass
	}

	path := data.JoinPath(parent, name)
	if ok, err := t.exists(ctx, path); err != nil {
		return nil, err
	} else if ok {
		return nil, rerrors.PathExist(data.ErrExist, path)
	}

	rec, err := t.db.registry.NewRecord(path, classID)
	if err != nil {
		return nil, err
	}
	for prop, values := range props {
		rec.Set(prop, values...)
	}

	res, err := t.db.registry.Resolve(rec)
	if err != nil {
		return nil, err
	}

	delete(t.cache, path)
	t.changes.Stage(res)
	return res, nil
}

// Delete removes path and its subtree. It is refused while resources outside
// the subtree still link into it; nothing is staged in that case.
func (t *Transaction) Delete(ctx context.Context, path string) error {
	if err := t.check(true); err != nil {
		return err
	}

	path, err := data.CleanPath(path)
	if err != nil {
		return err
	}
	if path == data.RootPath {
		return rerrors.InvalidPath(data.ErrInvalidPath, path)
	}
	if ok, err := t.exists(ctx, path); err != nil {
		return err
	} else if !ok {
		return rerrors.PathNotExist(data.ErrNotExist, path)
	}

	subtree, err := t.subtree(ctx, path)
	if err != nil {
		return err
	}

	referrers, err := t.referrers(path, subtree)
	if err != nil {
		return err
	}
	if len(referrers) > 0 {
		return rerrors.Consistency(nil, path, referrers)
	}

	for _, p := range subtree {
		t.changes.Remove(p)
		delete(t.cache, p)
	}
	return nil
}

// referrers returns the current paths of resources outside root that link
// to any path of subtree.
func (t *Transaction) referrers(root string, subtree []string) ([]string, error) {
	targets := make(map[string]struct{}, len(subtree))
	found := make(map[string]struct{})

	for _, p := range subtree {
		targets[p] = struct{}{}

		committed := p
		if origin, ok := t.changes.MovedNewToOld[p]; ok {
			committed = origin
		}

		result, err := t.db.catalog.Search(catalog.Equal(catalog.FieldLinks, committed), catalog.SearchOptions{})
		if err != nil {
			return nil, rerrors.Internal(err, "referrer lookup")
		}

		for _, hit := range result.Paths() {
			if t.changes.IsRemoved(hit) {
				continue
			}
			current := t.changes.CurrentPath(hit)
			if data.IsAncestor(root, current) {
				continue
			}
			// Staged resources are checked against their current links below.
			if _, staged := t.changes.NewPaths[current]; staged {
				continue
			}
			found[current] = struct{}{}
		}
	}

	for p, res := range t.changes.NewPaths {
		if data.IsAncestor(root, p) {
			continue
		}
		for _, link := range resource.Links(res) {
			if _, ok := targets[link]; ok {
				found[p] = struct{}{}
			}
		}
	}

	return data.SortedPaths(found), nil
}

// Move relocates oldPath and its subtree to newPath. Links pointing at the
// moved resources are rewritten on commit.
func (t *Transaction) Move(ctx context.Context, oldPath, newPath string) error {
	if err := t.check(true); err != nil {
		return err
	}

	oldPath, err := data.CleanPath(oldPath)
	if err != nil {
		return err
	}
	newPath, err = data.CleanPath(newPath)
	if err != nil {
		return err
	}

	if oldPath == data.RootPath || data.IsAncestor(oldPath, newPath) {
		return rerrors.InvalidPath(data.ErrInvalidPath, newPath)
	}
	if ok, err := t.exists(ctx, oldPath); err != nil {
		return err
	} else if !ok {
		return rerrors.PathNotExist(data.ErrNotExist, oldPath)
	}
	if ok, err := t.exists(ctx, data.ParentPath(newPath)); err != nil {
		return err
	} else if !ok {
		return rerrors.PathNotExist(data.ErrNotExist, data.ParentPath(newPath))
	}
	if ok, err := t.exists(ctx, newPath); err != nil {
		return err
	} else if ok {
		return rerrors.PathExist(data.ErrExist, newPath)
	}

	subtree, err := t.subtree(ctx, oldPath)
	if err != nil {
		return err
	}

	resources := make([]resource.Resource, len(subtree))
	for i, p := range subtree {
		if resources[i], err = t.get(ctx, p); err != nil {
			return err
		}
	}

	for i, p := range subtree {
		target := data.Rebase(p, oldPath, newPath)
		res := resources[i]

		t.changes.Move(p, target)
		delete(t.cache, p)

		res.Record().Path = target
		t.changes.Stage(res)
	}
	return nil
}

// MarkDirty stages path for writing and reindexing.
func (t *Transaction) MarkDirty(ctx context.Context, path string) error {
	if err := t.check(true); err != nil {
		return err
	}

	res, err := t.Get(ctx, path)
	if err != nil {
		return err
	}
	t.changes.Stage(res)
	return nil
}

// SetHandler attaches payload to the resource under name. The payload is
// written with the commit.
func (t *Transaction) SetHandler(ctx context.Context, path, name, contentType string, payload []byte) (data.Handler, error) {
	if err := t.check(true); err != nil {
		return data.Handler{}, err
	}

	res, err := t.Get(ctx, path)
	if err != nil {
		return data.Handler{}, err
	}

	h := data.Handler{
		Name:        name,
		Hash:        t.changes.StageBlob(slices.Clone(payload)),
		Size:        int64(len(payload)),
		ContentType: contentType,
	}
	res.Record().SetHandler(h)
	t.changes.Stage(res)

	return h, nil
}

// ReadHandler returns the payload attached to the resource under name.
func (t *Transaction) ReadHandler(ctx context.Context, path, name string) ([]byte, error) {
	res, err := t.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	h, ok := res.Record().Handlers[name]
	if !ok {
		return nil, rerrors.PathNotExist(data.ErrNotExist, res.Path()+"#"+name)
	}
	if payload, ok := t.changes.Blobs[h.Hash]; ok {
		return slices.Clone(payload), nil
	}
	return t.db.store.ReadHandler(ctx, h)
}

// Search queries the committed catalog. Changes staged in this transaction
// become visible once it commits.
func (t *Transaction) Search(ctx context.Context, q catalog.Query, opts catalog.SearchOptions) (*catalog.Result, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}
	return t.db.catalog.Search(q, opts)
}

// Commit runs the commit pipeline and writes store and catalog. A cancelled
// ctx aborts the transaction without writing anything. The transaction is
// finished afterwards in every case.
func (t *Transaction) Commit(ctx context.Context) (err error) {
	if t.Done() {
		return data.ErrTxDone
	}
	defer t.finish()

	if err := ctx.Err(); err != nil {
		CommitCount.WithLabelValues("aborted").Inc()
		return err
	}
	if t.Mode() != gate.ReadWrite {
		return nil
	}

	start := time.Now()
	defer func() {
		result := "success"
		if err != nil {
			result = "failure"
		}
		CommitCount.WithLabelValues(result).Inc()
		CommitDuration.Observe(time.Since(start).Seconds())
	}()

	// Resources mutated in place without being staged explicitly.
	for p, res := range t.cache {
		if res.Record().Dirty() {
			if _, staged := t.changes.NewPaths[p]; !staged {
				t.changes.Stage(res)
			}
		}
	}
	if t.changes.Empty() {
		return nil
	}

	// Hooks see this transaction, so a nested Begin fails instead of waiting
	// on the gate this transaction holds.
	hookCtx := context.WithValue(ctx, txKey{}, t)

	cs, batch, stats, err := pipeline.RunWithStats(hookCtx, &pipeline.Input{
		Changes:      t.changes,
		View:         t,
		Catalog:      t.db.catalog,
		AuthorID:     t.options.AuthorID,
		AuthorEmail:  t.options.AuthorEmail,
		Message:      t.options.Message,
		Method:       t.options.Method,
		RequestPath:  t.options.RequestPath,
		Time:         time.Now().UTC(),
		NoTimestamp:  t.options.NoTimestamp,
		ReindexBatch: t.db.Options.ReindexBatch,
		Logger:       t.db.log.Named("pipeline"),
	})
	if err != nil {
		return fmt.Errorf("commit pipeline failed: %w", err)
	}

	prepared, err := t.db.catalog.Prepare(batch)
	if err != nil {
		return rerrors.Internal(err, "catalog prepare")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := t.db.store.Commit(ctx, cs); err != nil {
		return rerrors.Internal(err, "store commit")
	}
	t.db.catalog.Apply(prepared)

	if err := t.db.saveCatalog(); err != nil {
		t.db.log.Warn("failed to save catalog after commit %s: %v", cs.Commit.ID, err)
	}

	ReindexedDocuments.WithLabelValues("commit").Add(float64(len(batch.Index)))
	if t.db.log.Enabled(log.Debug) {
		t.db.log.Debug("commit %s: %d puts, %d deletes, %d reindexed, %d dependents, %d queries",
			cs.Commit.ID, len(cs.Puts), len(cs.Deletes), len(batch.Index), stats.Dependents, stats.Queries)
	}
	return nil
}

// Abort discards every staged change. Aborting a finished transaction is a no-op.
func (t *Transaction) Abort() {
	if t.Done() {
		return
	}
	t.finish()
}

func (t *Transaction) finish() {
	if t.done.Swap(true) {
		return
	}

	t.changes.Reset()
	clear(t.cache)
	t.handle.Release()
}
