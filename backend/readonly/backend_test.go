package readonly

import (
	"errors"
	"testing"
	"time"

	"github.com/mwantia/resdb/backend/memory"
	"github.com/mwantia/resdb/data"
)

func populate(t *testing.T) *memory.MemoryBackend {
	t.Helper()

	mem := memory.NewMemoryBackend()
	rec := data.NewRecord("/file", "resource", 1)
	rec.SetHandler(data.Handler{Name: "data", Hash: data.HashBlob([]byte("readonly test")), Size: 13})

	cs := &data.Changeset{
		Commit: data.CommitInfo{ID: data.NewCommitID(), AuthorID: "test", Time: time.Now()},
		Puts:   []*data.Record{rec},
		Blobs:  map[string][]byte{rec.Handlers["data"].Hash: []byte("readonly test")},
	}
	if err := mem.ApplyChangeset(t.Context(), cs); err != nil {
		t.Fatalf("ApplyChangeset failed: %v", err)
	}
	return mem
}

func TestReadOnlyBackend_ReadOperations(t *testing.T) {
	ctx := t.Context()
	rob := NewReadOnlyBackend(populate(t))

	rec, err := rob.ReadRecord(ctx, "/file")
	if err != nil {
		t.Fatalf("ReadRecord failed: %v", err)
	}

	payload, err := rob.GetBlob(ctx, rec.Handlers["data"].Hash)
	if err != nil {
		t.Fatalf("GetBlob failed: %v", err)
	}
	if string(payload) != "readonly test" {
		t.Errorf("Expected 'readonly test', got %q", payload)
	}

	history, err := rob.ReadHistory(ctx, 0)
	if err != nil {
		t.Fatalf("ReadHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("Expected 1 commit, got %d", len(history))
	}

	if rob.Name() != "readonly:memory" {
		t.Errorf("Unexpected name '%s'", rob.Name())
	}
}

func TestReadOnlyBackend_WriteOperationsFail(t *testing.T) {
	ctx := t.Context()
	mem := populate(t)
	rob := NewReadOnlyBackend(mem)

	cs := &data.Changeset{
		Commit:  data.CommitInfo{ID: data.NewCommitID()},
		Deletes: []string{"/file"},
	}
	if err := rob.ApplyChangeset(ctx, cs); !errors.Is(err, data.ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly, got %v", err)
	}
	if err := rob.PutBlob(ctx, "hash", []byte("x")); !errors.Is(err, data.ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly for PutBlob, got %v", err)
	}

	if exists, _ := mem.ExistsRecord(ctx, "/file"); !exists {
		t.Errorf("Expected the wrapped backend to be untouched")
	}
}
