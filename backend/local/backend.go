package local

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/mwantia/resdb/backend"
)

// LocalBackend stores content-addressed blobs as files below a root directory.
type LocalBackend struct {
	mu   sync.RWMutex
	root string
}

func NewLocalBackend(root string) (*LocalBackend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	return &LocalBackend{root: abs}, nil
}

// Returns the identifier name defined for this backend
func (*LocalBackend) Name() string {
	return "local"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (lb *LocalBackend) Open(ctx context.Context) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	return os.MkdirAll(lb.root, 0755)
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (lb *LocalBackend) Close(ctx context.Context) error {
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (lb *LocalBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityBlob,
		},
	}
}

// resolvePath spreads blobs over 256 directories by their first hash byte.
func (lb *LocalBackend) resolvePath(hash string) string {
	if len(hash) < 2 {
		return filepath.Join(lb.root, hash)
	}
	return filepath.Join(lb.root, hash[:2], hash)
}
