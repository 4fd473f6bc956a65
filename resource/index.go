package resource

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/mwantia/resdb/catalog"
	"github.com/mwantia/resdb/data"
)

// Links returns the outgoing references of res.
func Links(res Resource) []string {
	if l, ok := res.(Linker); ok {
		return l.Links()
	}
	return res.Record().Values(data.PropertyLinks)
}

// Dependencies returns the paths res must be reindexed for when they change.
func Dependencies(res Resource) []string {
	if d, ok := res.(Dependent); ok {
		return d.Dependencies()
	}
	return res.Record().Values(data.PropertyOnChangeReindex)
}

// IndexValues computes the catalog document of res: the built-in fields
// followed by whatever an Indexer adds or overrides.
func IndexValues(ctx context.Context, view View, res Resource) (catalog.Document, error) {
	rec := res.Record()
	path := res.Path()

	doc := catalog.Document{
		catalog.FieldAbsPath:     path,
		catalog.FieldName:        data.BaseName(path),
		catalog.FieldParentPaths: data.ParentPaths(path),
		catalog.FieldFormat:      rec.ClassID,
		catalog.FieldModifyTime:  rec.ModifyTime,
	}

	if title := rec.GetValue(data.PropertyTitle, ""); title != "" {
		doc[catalog.FieldTitle] = title
	}
	if rec.LastAuthor != "" {
		doc[catalog.FieldLastAuthor] = rec.LastAuthor
	}
	if links := Links(res); len(links) > 0 {
		doc[catalog.FieldLinks] = links
	}
	if deps := Dependencies(res); len(deps) > 0 {
		doc[catalog.FieldOnChangeReindex] = deps
	}

	if raw := rec.GetValue(data.PropertyNextTimeEvent, ""); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s of '%s': %w", data.PropertyNextTimeEvent, path, err)
		}
		doc[catalog.FieldNextTimeEvent] = t
	}

	if ix, ok := res.(Indexer); ok {
		extra, err := ix.IndexValues(ctx, view)
		if err != nil {
			return nil, err
		}
		maps.Copy(doc, extra)
	}

	return doc, nil
}
