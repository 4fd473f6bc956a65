package resource

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/mwantia/resdb/catalog"
	"github.com/mwantia/resdb/data"
)

type menuEntry struct {
	*Base
}

func (m *menuEntry) IndexValues(ctx context.Context, view View) (catalog.Document, error) {
	links := m.Links()
	if len(links) == 0 {
		return nil, nil
	}

	target, err := view.Get(ctx, links[0])
	if err != nil {
		return nil, err
	}
	return catalog.Document{catalog.FieldTitle: "-> " + target.Record().GetValue(data.PropertyTitle, "")}, nil
}

type mapView map[string]Resource

func (v mapView) Get(_ context.Context, path string) (Resource, error) {
	if res, ok := v[path]; ok {
		return res, nil
	}
	return nil, data.ErrNotExist
}

func TestBase_UpdateLinks(t *testing.T) {
	b := NewBase(data.NewRecord("/menu", DefaultClass, 1))
	b.Set(data.PropertyLinks, "/a", "/a/child", "/ab", "/other")
	b.Set(data.PropertyOnChangeReindex, "/a")
	b.Record().ClearDirty()

	if !b.UpdateLinks("/a", "/b") {
		t.Fatal("Expected links to change")
	}

	if expected := []string{"/b", "/b/child", "/ab", "/other"}; !slices.Equal(b.Links(), expected) {
		t.Errorf("Expected %v, got %v", expected, b.Links())
	}
	if expected := []string{"/b"}; !slices.Equal(b.Dependencies(), expected) {
		t.Errorf("Expected %v, got %v", expected, b.Dependencies())
	}
	if !b.Record().Dirty() {
		t.Error("Expected record to be dirty")
	}

	if b.UpdateLinks("/zzz", "/y") {
		t.Error("Expected no change for unrelated path")
	}
}

func TestBase_NextTimeEvent(t *testing.T) {
	b := NewBase(data.NewRecord("/job", DefaultClass, 1))
	if _, _, ok := b.NextTimeEvent(); ok {
		t.Fatal("Expected no schedule")
	}

	due := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	b.SetNextTimeEvent(due, "remind")

	got, payload, ok := b.NextTimeEvent()
	if !ok || !got.Equal(due) || payload != "remind" {
		t.Errorf("Unexpected schedule %v %q %v", got, payload, ok)
	}

	b.ClearNextTimeEvent()
	if _, _, ok := b.NextTimeEvent(); ok {
		t.Error("Expected cleared schedule")
	}
}

func TestIndexValues(t *testing.T) {
	ctx := t.Context()

	page := NewBase(data.NewRecord("/docs/page", DefaultClass, 1))
	page.Set(data.PropertyTitle, "Hello")
	page.Set(data.PropertyNextTimeEvent, "2026-05-01T08:00:00Z")
	page.Record().LastAuthor = "alice"

	menu := &menuEntry{NewBase(data.NewRecord("/menu", "menu", 1))}
	menu.Set(data.PropertyLinks, "/docs/page")

	view := mapView{"/docs/page": page, "/menu": menu}

	doc, err := IndexValues(ctx, view, page)
	if err != nil {
		t.Fatalf("IndexValues failed: %v", err)
	}
	if doc[catalog.FieldAbsPath] != "/docs/page" || doc[catalog.FieldName] != "page" {
		t.Errorf("Unexpected path fields: %v", doc)
	}
	if parents := doc[catalog.FieldParentPaths].([]string); !slices.Equal(parents, []string{"/", "/docs"}) {
		t.Errorf("Unexpected parent paths: %v", parents)
	}
	if _, ok := doc[catalog.FieldNextTimeEvent].(time.Time); !ok {
		t.Errorf("Expected next_time_event as time, got %T", doc[catalog.FieldNextTimeEvent])
	}
	if doc[catalog.FieldLastAuthor] != "alice" {
		t.Errorf("Expected last author, got %v", doc[catalog.FieldLastAuthor])
	}

	doc, err = IndexValues(ctx, view, menu)
	if err != nil {
		t.Fatalf("IndexValues failed: %v", err)
	}
	if doc[catalog.FieldTitle] != "-> Hello" {
		t.Errorf("Expected indexer title, got %v", doc[catalog.FieldTitle])
	}
	if doc[catalog.FieldFormat] != "menu" {
		t.Errorf("Expected format menu, got %v", doc[catalog.FieldFormat])
	}

	// The document must be accepted by the default schema
	if err := catalog.New(nil).Index(menu.Path(), doc); err != nil {
		t.Errorf("Index failed: %v", err)
	}

	page.Set(data.PropertyNextTimeEvent, "tomorrow")
	if _, err := IndexValues(ctx, view, page); err == nil {
		t.Error("Expected invalid next_time_event to fail")
	}
}

func TestRegistry_Resolve(t *testing.T) {
	registry, err := NewRegistry(Kind{
		ClassID: "menu",
		Version: 2,
		New: func(rec *data.Record) Resource {
			return &menuEntry{NewBase(rec)}
		},
		Upgrade: func(rec *data.Record, from int) error {
			if from == 1 {
				rec.Set("target", rec.Get("href")...)
				rec.Delete("href")
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	old := data.NewRecord("/menu", "menu", 1)
	old.Set("href", data.Property{Value: "/a"})
	old.ClearDirty()

	res, err := registry.Resolve(old)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, ok := res.(*menuEntry); !ok {
		t.Fatalf("Expected *menuEntry, got %T", res)
	}
	if old.ClassVersion != 2 || !old.Dirty() || old.GetValue("target", "") != "/a" {
		t.Errorf("Expected upgraded record, got version %d", old.ClassVersion)
	}

	unknown := data.NewRecord("/x", "calendar", 3)
	res, err = registry.Resolve(unknown)
	if err != nil {
		t.Fatalf("Resolve with fallback failed: %v", err)
	}
	if _, ok := res.(*Base); !ok {
		t.Errorf("Expected fallback *Base, got %T", res)
	}

	registry.SetFallback("")
	if _, err := registry.Resolve(unknown); !errors.Is(err, data.ErrUnknownClass) {
		t.Errorf("Expected ErrUnknownClass, got %v", err)
	}

	if _, err := registry.NewRecord("/y", "calendar"); !errors.Is(err, data.ErrUnknownClass) {
		t.Errorf("Expected ErrUnknownClass, got %v", err)
	}
	rec, err := registry.NewRecord("/y", "menu")
	if err != nil || rec.ClassVersion != 2 {
		t.Errorf("Expected record at version 2, got %v %v", rec, err)
	}
}
