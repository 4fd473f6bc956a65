package data

import (
	"errors"
	"slices"
	"testing"
)

func TestCleanPath(t *testing.T) {
	tests := map[string]string{
		"a":        "/a",
		"/a/b/":    "/a/b",
		"/a//b":    "/a/b",
		"/a/./b":   "/a/b",
		"/a/../b":  "/b",
		"/":        "/",
		"/../../c": "/c",
	}

	for input, expected := range tests {
		got, err := CleanPath(input)
		if err != nil {
			t.Fatalf("CleanPath(%q) failed: %v", input, err)
		}
		if got != expected {
			t.Errorf("CleanPath(%q): expected %q, got %q", input, expected, got)
		}
	}

	if _, err := CleanPath(""); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Expected ErrInvalidPath, got %v", err)
	}
}

func TestIsAncestor(t *testing.T) {
	if !IsAncestor("/a", "/a/b") {
		t.Error("Expected /a to contain /a/b")
	}
	if !IsAncestor("/a", "/a") {
		t.Error("Expected /a to contain itself")
	}
	if IsAncestor("/a", "/ab") {
		t.Error("Expected /a not to contain /ab")
	}
	if !IsAncestor("/", "/x/y") {
		t.Error("Expected root to contain everything")
	}
}

func TestParentPaths(t *testing.T) {
	got := ParentPaths("/a/b/c")
	expected := []string{"/", "/a", "/a/b"}
	if !slices.Equal(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}

	if got := ParentPaths("/"); got != nil {
		t.Errorf("Expected no parents for root, got %v", got)
	}
}

func TestRebase(t *testing.T) {
	tests := []struct {
		path, from, to, expected string
	}{
		{"/a", "/a", "/b", "/b"},
		{"/a/x/y", "/a", "/b/c", "/b/c/x/y"},
		{"/ab", "/a", "/b", "/ab"},
		{"/z", "/a", "/b", "/z"},
	}

	for _, tt := range tests {
		if got := Rebase(tt.path, tt.from, tt.to); got != tt.expected {
			t.Errorf("Rebase(%q, %q, %q): expected %q, got %q", tt.path, tt.from, tt.to, tt.expected, got)
		}
	}
}
