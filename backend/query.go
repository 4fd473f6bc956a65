package backend

import (
	"strings"

	"github.com/mwantia/resdb/data"
)

type ListQuery struct {
	// Prefix is the path below which records are listed; "/" lists everything
	Prefix string `json:"prefix"`

	// Recursive lists all descendants instead of the immediate children
	Recursive bool `json:"recursive"`

	// Max results to return (0 = unlimited)
	Limit int `json:"limit"`

	// Skip this many results during pagination
	Offset int `json:"offset"`
}

// Matches reports whether p is listed by the query. The prefix itself never is.
func (q *ListQuery) Matches(p string) bool {
	prefix := q.Prefix
	if prefix == "" {
		prefix = data.RootPath
	}
	if p == prefix || !data.IsAncestor(prefix, p) {
		return false
	}
	if q.Recursive {
		return true
	}

	rest := strings.TrimPrefix(strings.TrimPrefix(p, prefix), "/")
	return !strings.Contains(rest, "/")
}

// LowerBound returns the first key a sorted scan needs to visit.
func (q *ListQuery) LowerBound() string {
	if q.Prefix == "" || q.Prefix == data.RootPath {
		return data.RootPath
	}
	return q.Prefix + "/"
}

// Paginate applies offset and limit to an already sorted result.
func Paginate[T any](items []T, query *ListQuery) []T {
	if query.Offset > 0 {
		if query.Offset >= len(items) {
			return items[:0]
		}
		items = items[query.Offset:]
	}
	if query.Limit > 0 && query.Limit < len(items) {
		items = items[:query.Limit]
	}
	return items
}
