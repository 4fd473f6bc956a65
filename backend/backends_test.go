package backend_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/mwantia/resdb/backend"
	"github.com/mwantia/resdb/backend/consul"
	"github.com/mwantia/resdb/backend/local"
	"github.com/mwantia/resdb/backend/memory"
	"github.com/mwantia/resdb/backend/postgres"
	"github.com/mwantia/resdb/backend/s3"
	"github.com/mwantia/resdb/backend/sqlite"
	"github.com/mwantia/resdb/data"
)

// MetadataFactory creates a new metadata backend instance for testing.
type MetadataFactory func(t *testing.T) (backend.MetadataBackend, error)

// BlobFactory creates a new blob backend instance for testing.
type BlobFactory func(t *testing.T) (backend.BlobBackend, error)

// GetMetadataFactories returns all metadata backend implementations to test.
// Postgres is only included when RESDB_POSTGRES_DSN is set.
func GetMetadataFactories() map[string]MetadataFactory {
	factories := map[string]MetadataFactory{
		"memory": func(t *testing.T) (backend.MetadataBackend, error) {
			return memory.NewMemoryBackend(), nil
		},
		"sqlite": func(t *testing.T) (backend.MetadataBackend, error) {
			return sqlite.NewSQLiteBackend(filepath.Join(t.TempDir(), "resdb.db"))
		},
	}

	if dsn := os.Getenv("RESDB_POSTGRES_DSN"); dsn != "" {
		factories["postgres"] = func(t *testing.T) (backend.MetadataBackend, error) {
			return postgres.NewPostgresBackend(t.Context(), dsn)
		}
	}

	return factories
}

// GetBlobFactories returns all blob backend implementations to test.
// S3 and Consul are only included when their endpoints are configured.
func GetBlobFactories() map[string]BlobFactory {
	factories := map[string]BlobFactory{
		"memory": func(t *testing.T) (backend.BlobBackend, error) {
			return memory.NewMemoryBackend(), nil
		},
		"sqlite": func(t *testing.T) (backend.BlobBackend, error) {
			return sqlite.NewSQLiteBackend(filepath.Join(t.TempDir(), "resdb.db"))
		},
		"local": func(t *testing.T) (backend.BlobBackend, error) {
			return local.NewLocalBackend(t.TempDir())
		},
	}

	if endpoint := os.Getenv("RESDB_S3_ENDPOINT"); endpoint != "" {
		factories["s3"] = func(t *testing.T) (backend.BlobBackend, error) {
			return s3.NewS3Backend(endpoint, os.Getenv("RESDB_S3_BUCKET"),
				os.Getenv("RESDB_S3_ACCESS_KEY"), os.Getenv("RESDB_S3_SECRET_KEY"), false)
		}
	}
	if address := os.Getenv("RESDB_CONSUL_ADDR"); address != "" {
		factories["consul"] = func(t *testing.T) (backend.BlobBackend, error) {
			return consul.NewConsulBackend(&consul.ConsulBackendConfig{
				Address: address,
				Prefix:  "resdb-test/" + data.NewCommitID(),
			})
		}
	}

	return factories
}

func openMetadata(t *testing.T, factory MetadataFactory) backend.MetadataBackend {
	t.Helper()

	mb, err := factory(t)
	if err != nil {
		t.Fatalf("Backend init failed: %v", err)
	}
	if err := mb.Open(t.Context()); err != nil {
		t.Fatalf("Backend open failed: %v", err)
	}
	t.Cleanup(func() {
		mb.Close(t.Context())
	})

	return mb
}

func changeset(message string, puts []*data.Record, deletes ...string) *data.Changeset {
	cs := &data.Changeset{
		Commit: data.CommitInfo{
			ID:       data.NewCommitID(),
			AuthorID: data.AnonymousAuthor,
			Message:  message,
			Time:     time.Now().UTC(),
		},
		Puts:    puts,
		Deletes: deletes,
		Blobs:   make(map[string][]byte),
	}
	for _, rec := range puts {
		cs.Commit.Paths = append(cs.Commit.Paths, rec.Path)
	}
	cs.Commit.Paths = append(cs.Commit.Paths, deletes...)

	return cs
}

func record(path, title string) *data.Record {
	rec := data.NewRecord(path, "resource", 1)
	rec.Set(data.PropertyTitle, data.Property{Value: title})
	return rec
}

// TestAllBackends_ApplyChangeset verifies puts, deletes and head tracking
// across all metadata backend implementations.
func TestAllBackends_ApplyChangeset(t *testing.T) {
	for name, factory := range GetMetadataFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			mb := openMetadata(tst, factory)

			head, err := mb.Head(ctx)
			if err != nil {
				tst.Fatalf("Head failed: %v", err)
			}
			if head != "" {
				tst.Errorf("Expected empty head, got %q", head)
			}

			first := changeset("create", []*data.Record{record("/a", "Hello"), record("/a/b", "Nested")})
			if err := mb.ApplyChangeset(ctx, first); err != nil {
				tst.Fatalf("ApplyChangeset failed: %v", err)
			}

			rec, err := mb.ReadRecord(ctx, "/a")
			if err != nil {
				tst.Fatalf("ReadRecord failed: %v", err)
			}
			if rec.GetValue(data.PropertyTitle, "") != "Hello" {
				tst.Errorf("Expected title Hello, got %q", rec.GetValue(data.PropertyTitle, ""))
			}
			if rec.Dirty() {
				tst.Error("Expected loaded record to be clean")
			}

			second := changeset("remove", []*data.Record{record("/c", "Other")}, "/a/b")
			if err := mb.ApplyChangeset(ctx, second); err != nil {
				tst.Fatalf("ApplyChangeset failed: %v", err)
			}

			if exists, _ := mb.ExistsRecord(ctx, "/a/b"); exists {
				tst.Error("Expected /a/b to be deleted")
			}
			if _, err := mb.ReadRecord(ctx, "/a/b"); !errors.Is(err, data.ErrNotExist) {
				tst.Errorf("Expected ErrNotExist, got %v", err)
			}

			head, err = mb.Head(ctx)
			if err != nil {
				tst.Fatalf("Head failed: %v", err)
			}
			if head != second.Commit.ID {
				tst.Errorf("Expected head %s, got %s", second.Commit.ID, head)
			}
		})
	}
}

// TestAllBackends_ListRecords verifies direct and recursive listings
// across all metadata backend implementations.
func TestAllBackends_ListRecords(t *testing.T) {
	for name, factory := range GetMetadataFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			mb := openMetadata(tst, factory)

			puts := []*data.Record{
				record("/a", "a"),
				record("/a/x", "x"),
				record("/a/x/deep", "deep"),
				record("/a/y", "y"),
				record("/ab", "ab"),
				record("/b", "b"),
			}
			if err := mb.ApplyChangeset(ctx, changeset("seed", puts)); err != nil {
				tst.Fatalf("ApplyChangeset failed: %v", err)
			}

			tests := []struct {
				query    *backend.ListQuery
				expected []string
			}{
				{&backend.ListQuery{Prefix: "/"}, []string{"/a", "/ab", "/b"}},
				{&backend.ListQuery{Prefix: "/a"}, []string{"/a/x", "/a/y"}},
				{&backend.ListQuery{Prefix: "/a", Recursive: true}, []string{"/a/x", "/a/x/deep", "/a/y"}},
				{&backend.ListQuery{Prefix: "/", Recursive: true, Offset: 1, Limit: 2}, []string{"/a/x", "/a/x/deep"}},
				{&backend.ListQuery{Prefix: "/b"}, []string{}},
			}

			for _, tt := range tests {
				records, err := mb.ListRecords(ctx, tt.query)
				if err != nil {
					tst.Fatalf("ListRecords failed: %v", err)
				}

				paths := make([]string, len(records))
				for i, rec := range records {
					paths[i] = rec.Path
				}
				if !slices.Equal(paths, tt.expected) {
					tst.Errorf("ListRecords(%+v): expected %v, got %v", *tt.query, tt.expected, paths)
				}
			}
		})
	}
}

// TestAllBackends_History verifies the commit log and per-path revisions
// across all metadata backend implementations.
func TestAllBackends_History(t *testing.T) {
	for name, factory := range GetMetadataFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			mb := openMetadata(tst, factory)

			hb, ok := mb.(backend.HistoryBackend)
			if !ok || !mb.GetCapabilities().Contains(backend.CapabilityHistory) {
				tst.Skip("backend keeps no history")
			}

			commits := []*data.Changeset{
				changeset("one", []*data.Record{record("/a", "v1")}),
				changeset("two", []*data.Record{record("/a", "v2")}),
				changeset("three", nil, "/a"),
			}
			for _, cs := range commits {
				if err := mb.ApplyChangeset(ctx, cs); err != nil {
					tst.Fatalf("ApplyChangeset failed: %v", err)
				}
			}

			history, err := hb.ReadHistory(ctx, 2)
			if err != nil {
				tst.Fatalf("ReadHistory failed: %v", err)
			}
			if len(history) != 2 || history[0].Message != "three" || history[1].Message != "two" {
				tst.Errorf("Unexpected history: %+v", history)
			}

			revisions, err := hb.ReadRevisions(ctx, "/a")
			if err != nil {
				tst.Fatalf("ReadRevisions failed: %v", err)
			}
			if len(revisions) != 3 {
				tst.Fatalf("Expected 3 revisions, got %d", len(revisions))
			}
			if revisions[0].Record.GetValue(data.PropertyTitle, "") != "v1" {
				tst.Errorf("Expected first revision v1, got %+v", revisions[0].Record)
			}
			if !revisions[2].Deleted || revisions[2].Record != nil {
				tst.Errorf("Expected last revision to be a deletion, got %+v", revisions[2])
			}

			if _, err := hb.ReadRevisions(ctx, "/never"); !errors.Is(err, data.ErrNotExist) {
				tst.Errorf("Expected ErrNotExist, got %v", err)
			}
		})
	}
}

// TestAllBackends_Reopen verifies that the path index is rebuilt on open.
func TestAllBackends_Reopen(t *testing.T) {
	ctx := t.Context()
	path := filepath.Join(t.TempDir(), "resdb.db")

	sb, err := sqlite.NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("Backend init failed: %v", err)
	}
	if err := sb.Open(ctx); err != nil {
		t.Fatalf("Backend open failed: %v", err)
	}
	if err := sb.ApplyChangeset(ctx, changeset("seed", []*data.Record{record("/kept", "kept")})); err != nil {
		t.Fatalf("ApplyChangeset failed: %v", err)
	}
	if err := sb.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	sb, err = sqlite.NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("Backend reinit failed: %v", err)
	}
	defer sb.Close(ctx)
	if err := sb.Open(ctx); err != nil {
		t.Fatalf("Backend reopen failed: %v", err)
	}

	if exists, _ := sb.ExistsRecord(ctx, "/kept"); !exists {
		t.Error("Expected /kept to survive reopen")
	}
}

// TestAllBackends_Blobs verifies idempotent content-addressed writes
// across all blob backend implementations.
func TestAllBackends_Blobs(t *testing.T) {
	for name, factory := range GetBlobFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()

			bb, err := factory(tst)
			if err != nil {
				tst.Fatalf("Backend init failed: %v", err)
			}
			if err := bb.Open(ctx); err != nil {
				tst.Fatalf("Backend open failed: %v", err)
			}
			defer bb.Close(ctx)

			payload := []byte("hello world")
			hash := data.HashBlob(payload)

			if exists, err := bb.HasBlob(ctx, hash); err != nil || exists {
				tst.Fatalf("Expected missing blob, got %v %v", exists, err)
			}

			for range 2 {
				if err := bb.PutBlob(ctx, hash, payload); err != nil {
					tst.Fatalf("PutBlob failed: %v", err)
				}
			}

			got, err := bb.GetBlob(ctx, hash)
			if err != nil {
				tst.Fatalf("GetBlob failed: %v", err)
			}
			if !bytes.Equal(got, payload) {
				tst.Errorf("Expected %q, got %q", payload, got)
			}

			if exists, err := bb.HasBlob(ctx, hash); err != nil || !exists {
				tst.Errorf("Expected existing blob, got %v %v", exists, err)
			}

			if _, err := bb.GetBlob(ctx, data.HashBlob([]byte("missing"))); !errors.Is(err, data.ErrNotExist) {
				tst.Errorf("Expected ErrNotExist, got %v", err)
			}
		})
	}
}

func TestMemoryBackend_MaxObjectSize(t *testing.T) {
	mb := memory.NewMemoryBackend(memory.WithMaxObjectSize(4))

	err := mb.PutBlob(t.Context(), "h", []byte("too large"))
	if !errors.Is(err, data.ErrTooLarge) {
		t.Errorf("Expected ErrTooLarge, got %v", err)
	}
}

func TestListQuery_Matches(t *testing.T) {
	tests := []struct {
		query    backend.ListQuery
		path     string
		expected bool
	}{
		{backend.ListQuery{Prefix: "/"}, "/a", true},
		{backend.ListQuery{Prefix: "/"}, "/a/b", false},
		{backend.ListQuery{Prefix: "/", Recursive: true}, "/a/b", true},
		{backend.ListQuery{Prefix: "/a"}, "/a", false},
		{backend.ListQuery{Prefix: "/a"}, "/ab", false},
		{backend.ListQuery{Prefix: "/a"}, "/a/b", true},
		{backend.ListQuery{Prefix: ""}, "/a", true},
	}

	for _, tt := range tests {
		if got := tt.query.Matches(tt.path); got != tt.expected {
			t.Errorf("Matches(%+v, %s): expected %v, got %v", tt.query, tt.path, tt.expected, got)
		}
	}
}
