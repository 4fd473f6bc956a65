package data

import (
	"errors"
	"testing"

	rerrors "github.com/mwantia/resdb/data/errors"
)

func TestRecord_Properties(t *testing.T) {
	r := NewRecord("/a", "page", 1)
	r.ClearDirty()

	r.SetLang(PropertyTitle, "en", "Hello")
	r.SetLang(PropertyTitle, "fr", "Bonjour")
	if !r.Dirty() {
		t.Error("Expected record to be dirty after SetLang")
	}

	if got := r.GetValue(PropertyTitle, "fr"); got != "Bonjour" {
		t.Errorf("Expected 'Bonjour', got %q", got)
	}
	if got := r.GetValue(PropertyTitle, "de"); got != "Hello" {
		t.Errorf("Expected fallback 'Hello', got %q", got)
	}

	r.SetLang(PropertyTitle, "en", "Hi")
	if got := len(r.Get(PropertyTitle)); got != 2 {
		t.Errorf("Expected 2 title values, got %d", got)
	}

	r.Add(PropertyLinks, Property{Value: "/b"}, Property{Value: "/c"})
	if got := r.Values(PropertyLinks); len(got) != 2 || got[0] != "/b" || got[1] != "/c" {
		t.Errorf("Expected ordered links, got %v", got)
	}
}

func TestRecord_CloneIsDeep(t *testing.T) {
	r := NewRecord("/a", "page", 1)
	r.Set("tags", Property{Value: "x"})
	r.SetHandler(Handler{Name: "data", Hash: "h1", Size: 1})

	clone := r.Clone()
	clone.Add("tags", Property{Value: "y"})
	clone.RemoveHandler("data")

	if got := len(r.Get("tags")); got != 1 {
		t.Errorf("Expected original to keep 1 tag, got %d", got)
	}
	if _, ok := r.Handlers["data"]; !ok {
		t.Error("Expected original to keep its handler")
	}
}

func TestRecord_MarshalRoundTrip(t *testing.T) {
	r := NewRecord("/a", "page", 3)
	r.SetLang(PropertyTitle, "en", "Hello")

	b, err := r.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	got, err := UnmarshalRecord(b)
	if err != nil {
		t.Fatalf("UnmarshalRecord failed: %v", err)
	}

	if got.Dirty() {
		t.Error("Expected decoded record to be clean")
	}
	if got.ClassVersion != 3 || got.GetValue(PropertyTitle, "en") != "Hello" {
		t.Errorf("Unexpected decoded record: %+v", got)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err      error
		expected ErrorKind
	}{
		{rerrors.Contention(ErrAlreadyLocked, "begin"), KindContention},
		{rerrors.Consistency(nil, "/a", []string{"/b"}), KindConsistency},
		{rerrors.Internal(errors.New("disk full"), "commit"), KindInternal},
		{ErrNotExist, KindOther},
		{nil, KindOther},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.expected {
			t.Errorf("KindOf(%v): expected %s, got %s", tt.err, tt.expected, got)
		}
	}

	if !errors.Is(rerrors.Contention(ErrAlreadyLocked, "begin"), ErrAlreadyLocked) {
		t.Error("Expected contention error to wrap its cause")
	}
}
