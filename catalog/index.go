package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/btree"
)

// Document holds the raw field values computed for one resource.
type Document map[string]any

// entry is the indexed form of a document.
type entry struct {
	path     string
	raw      Document
	terms    map[string][]string   // unique encoded terms per indexed field
	tokens   map[string][][]string // token sequences per value of text fields
	sortKeys map[string]string
	stored   map[string]any
}

// index is a postings btree keyed by field and encoded term.
type index struct {
	postings *btree.Map[string, *btree.Set[string]]
	docs     map[string]*entry
}

func newIndex() *index {
	return &index{
		postings: btree.NewMap[string, *btree.Set[string]](0),
		docs:     make(map[string]*entry),
	}
}

// buildEntry validates and encodes a document. It is the only fallible step of indexing.
func buildEntry(schema Schema, path string, doc Document) (*entry, error) {
	e := &entry{
		path:     path,
		raw:      doc,
		terms:    make(map[string][]string),
		tokens:   make(map[string][][]string),
		sortKeys: make(map[string]string),
		stored:   make(map[string]any),
	}

	for name, raw := range doc {
		field := schema.Field(name)
		values := flatten(raw)
		if len(values) == 0 {
			continue
		}
		if len(values) > 1 && !field.Multiple {
			return nil, fmt.Errorf("field '%s' of '%s' is not multi-valued", name, path)
		}

		normalized := make([]any, 0, len(values))
		for _, v := range values {
			n, err := normalize(field, v)
			if err != nil {
				return nil, fmt.Errorf("field '%s' of '%s': %w", name, path, err)
			}
			normalized = append(normalized, n)
		}

		if field.Indexed {
			seen := make(map[string]struct{})
			for _, n := range normalized {
				if field.Type == Text {
					tokens := tokenize(n.(string))
					e.tokens[name] = append(e.tokens[name], tokens)
					for _, tok := range tokens {
						seen[tok] = struct{}{}
					}
					continue
				}
				seen[encodeTerm(n)] = struct{}{}
			}
			for term := range seen {
				e.terms[name] = append(e.terms[name], term)
			}
			slices.Sort(e.terms[name])
		}

		if field.Type == Text {
			e.sortKeys[name] = strings.ToLower(normalized[0].(string))
		} else {
			e.sortKeys[name] = encodeTerm(normalized[0])
		}

		if field.Stored {
			e.stored[name] = storedValue(field, normalized)
		}
	}

	return e, nil
}

func storedValue(field Field, values []any) any {
	if !field.Multiple {
		return values[0]
	}

	if field.Type == Keyword || field.Type == Text {
		out := make([]string, len(values))
		for i, v := range values {
			out[i] = v.(string)
		}
		return out
	}
	return slices.Clone(values)
}

func (ix *index) add(e *entry) {
	ix.remove(e.path)

	for field, terms := range e.terms {
		for _, term := range terms {
			key := postingKey(field, term)
			set, ok := ix.postings.Get(key)
			if !ok {
				set = &btree.Set[string]{}
				ix.postings.Set(key, set)
			}
			set.Insert(e.path)
		}
	}
	ix.docs[e.path] = e
}

func (ix *index) remove(path string) {
	e, ok := ix.docs[path]
	if !ok {
		return
	}

	for field, terms := range e.terms {
		for _, term := range terms {
			key := postingKey(field, term)
			if set, ok := ix.postings.Get(key); ok {
				set.Delete(path)
				if set.Len() == 0 {
					ix.postings.Delete(key)
				}
			}
		}
	}
	delete(ix.docs, path)
}

func (ix *index) lookup(field, term string) map[string]struct{} {
	result := make(map[string]struct{})
	if set, ok := ix.postings.Get(postingKey(field, term)); ok {
		set.Scan(func(path string) bool {
			result[path] = struct{}{}
			return true
		})
	}
	return result
}

// scan collects the paths of every term of field in [lo, hi].
// An empty bound is open; hi is compared on the term only.
func (ix *index) scan(field, lo string, hasLo bool, hi string, hasHi bool, match func(term string) bool) map[string]struct{} {
	result := make(map[string]struct{})
	prefix := field + "\x00"

	pivot := prefix
	if hasLo {
		pivot = postingKey(field, lo)
	}

	ix.postings.Ascend(pivot, func(key string, set *btree.Set[string]) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}

		term := key[len(prefix):]
		if hasHi && term > hi {
			return false
		}
		if match != nil && !match(term) {
			return false
		}

		set.Scan(func(path string) bool {
			result[path] = struct{}{}
			return true
		})
		return true
	})

	return result
}

func (ix *index) all() map[string]struct{} {
	result := make(map[string]struct{}, len(ix.docs))
	for path := range ix.docs {
		result[path] = struct{}{}
	}
	return result
}
