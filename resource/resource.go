// Package resource defines what the database stores at a path: a metadata
// record wrapped by behaviour that is resolved from the record's class id.
package resource

import (
	"context"
	"slices"
	"time"

	"github.com/mwantia/resdb/data"
)

// Resource is a path-addressed node of the content tree.
type Resource interface {
	Path() string
	Record() *data.Record
}

// View gives read access to the resources visible in a transaction.
type View interface {
	Get(ctx context.Context, path string) (Resource, error)
}

// Tx is the part of a read-write transaction handed to resource callbacks.
type Tx interface {
	View

	Create(ctx context.Context, parent, name, classID string, props map[string][]data.Property) (Resource, error)
	Delete(ctx context.Context, path string) error
	Move(ctx context.Context, oldPath, newPath string) error
	MarkDirty(ctx context.Context, path string) error
}

// Base implements Resource over a plain record. Concrete kinds embed it.
type Base struct {
	rec *data.Record
}

func NewBase(rec *data.Record) *Base {
	return &Base{rec: rec}
}

func (b *Base) Path() string         { return b.rec.Path }
func (b *Base) Record() *data.Record { return b.rec }
func (b *Base) Title() string        { return b.rec.GetValue(data.PropertyTitle, "") }

// Get returns the untagged value of a property.
func (b *Base) Get(name string) string {
	return b.rec.GetValue(name, "")
}

func (b *Base) GetLang(name, lang string) string {
	return b.rec.GetValue(name, lang)
}

func (b *Base) Values(name string) []string {
	return b.rec.Values(name)
}

func (b *Base) Set(name string, values ...string) {
	b.rec.Set(name, properties(values)...)
}

func (b *Base) SetLang(name, lang, value string) {
	b.rec.SetLang(name, lang, value)
}

func (b *Base) Add(name string, values ...string) {
	b.rec.Add(name, properties(values)...)
}

func (b *Base) Delete(name string) {
	b.rec.Delete(name)
}

func (b *Base) Handler(name string) (data.Handler, bool) {
	h, ok := b.rec.Handlers[name]
	return h, ok
}

// Links returns the paths this resource refers to.
func (b *Base) Links() []string {
	return b.rec.Values(data.PropertyLinks)
}

// Dependencies returns the paths whose changes require reindexing this resource.
func (b *Base) Dependencies() []string {
	return b.rec.Values(data.PropertyOnChangeReindex)
}

// UpdateLinks rewrites every link and dependency pointing at oldPath or below
// it so that it points at the same place under newPath.
func (b *Base) UpdateLinks(oldPath, newPath string) bool {
	changed := false
	for _, name := range []string{data.PropertyLinks, data.PropertyOnChangeReindex} {
		props := slices.Clone(b.rec.Get(name))
		touched := false
		for i, p := range props {
			if p.Value == oldPath || data.IsAncestor(oldPath, p.Value) {
				props[i].Value = data.Rebase(p.Value, oldPath, newPath)
				touched = true
			}
		}
		if touched {
			b.rec.Set(name, props...)
			changed = true
		}
	}

	return changed
}

// NextTimeEvent returns the scheduled time and payload, if any.
func (b *Base) NextTimeEvent() (time.Time, string, bool) {
	raw := b.rec.GetValue(data.PropertyNextTimeEvent, "")
	if raw == "" {
		return time.Time{}, "", false
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, "", false
	}
	return t, b.rec.GetValue(data.PropertyNextTimeEventPayload, ""), true
}

func (b *Base) SetNextTimeEvent(t time.Time, payload string) {
	b.Set(data.PropertyNextTimeEvent, t.UTC().Format(time.RFC3339Nano))
	if payload == "" {
		b.Delete(data.PropertyNextTimeEventPayload)
		return
	}
	b.Set(data.PropertyNextTimeEventPayload, payload)
}

func (b *Base) ClearNextTimeEvent() {
	b.Delete(data.PropertyNextTimeEvent)
	b.Delete(data.PropertyNextTimeEventPayload)
}

func properties(values []string) []data.Property {
	props := make([]data.Property, len(values))
	for i, v := range values {
		props[i] = data.Property{Value: v}
	}
	return props
}
