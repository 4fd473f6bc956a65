package data

import (
	"path"
	"sort"
	"strings"

	"github.com/mwantia/resdb/data/errors"
)

// RootPath is the implicit root of every resource tree.
const RootPath = "/"

// CleanPath ensures the path always starts with a leading slash and contains
// no empty, '.' or '..' segments.
func CleanPath(p string) (string, error) {
	if len(p) == 0 {
		return "", errors.InvalidPath(ErrInvalidPath, p)
	}

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	return path.Clean(p), nil
}

// MustCleanPath is CleanPath for trusted input.
func MustCleanPath(p string) string {
	clean, err := CleanPath(p)
	if err != nil {
		panic(err)
	}
	return clean
}

// ParentPath returns the parent of p. The root is its own parent.
func ParentPath(p string) string {
	return path.Dir(p)
}

// BaseName returns the last segment of p.
func BaseName(p string) string {
	if p == RootPath {
		return ""
	}
	return path.Base(p)
}

// JoinPath joins a parent path and a child name.
func JoinPath(parent, name string) string {
	return path.Join(parent, name)
}

// IsAncestor reports whether ancestor equals p or contains it.
// "/a" contains "/a/b" but not "/ab".
func IsAncestor(ancestor, p string) bool {
	if ancestor == RootPath || ancestor == p {
		return true
	}

	return strings.HasPrefix(p, ancestor+"/")
}

// ParentPaths returns every ancestor of p from the root down, p excluded.
func ParentPaths(p string) []string {
	if p == RootPath {
		return nil
	}

	parents := []string{RootPath}
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	current := ""
	for _, part := range parts[:len(parts)-1] {
		current += "/" + part
		parents = append(parents, current)
	}

	return parents
}

// Rebase moves p from below oldPrefix to below newPrefix.
// Paths outside oldPrefix are returned unchanged.
func Rebase(p, oldPrefix, newPrefix string) string {
	if !IsAncestor(oldPrefix, p) {
		return p
	}

	if p == oldPrefix {
		return newPrefix
	}

	rel := strings.TrimPrefix(p, oldPrefix)
	if oldPrefix == RootPath {
		rel = p
	}

	return path.Join(newPrefix, rel)
}

// SortedPaths returns the keys of a path set in lexical order.
func SortedPaths[V any](set map[string]V) []string {
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	return paths
}
