package memory

import (
	"context"
	"sync"

	"github.com/mwantia/resdb/backend"
	"github.com/mwantia/resdb/data"
	"github.com/tidwall/btree"
)

// MemoryBackend keeps records, blobs and history in process memory.
// Records are indexed by path in a B-tree so prefix listings are ordered scans.
type MemoryBackend struct {
	mu sync.RWMutex

	records *btree.Map[string, *data.Record]
	blobs   map[string][]byte

	commits   []*data.CommitInfo
	revisions map[string][]*data.Revision
	head      string

	maxObjectSize int64
}

type MemoryOption func(*MemoryBackend)

// WithMaxObjectSize limits the size of a single blob.
func WithMaxObjectSize(size int64) MemoryOption {
	return func(mb *MemoryBackend) {
		mb.maxObjectSize = size
	}
}

func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	mb := &MemoryBackend{
		records:   btree.NewMap[string, *data.Record](0),
		blobs:     make(map[string][]byte),
		revisions: make(map[string][]*data.Revision),
	}
	for _, opt := range opts {
		opt(mb)
	}

	return mb
}

// Returns the identifier name defined for this backend
func (*MemoryBackend) Name() string {
	return "memory"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (mb *MemoryBackend) Open(ctx context.Context) error {
	// No initialization needed - backend is ready to use
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (mb *MemoryBackend) Close(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.records.Clear()
	clear(mb.blobs)
	clear(mb.revisions)
	mb.commits = nil
	mb.head = ""

	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (mb *MemoryBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityMetadata,
			backend.CapabilityBlob,
			backend.CapabilityHistory,
		},
		MaxObjectSize: mb.maxObjectSize,
	}
}
