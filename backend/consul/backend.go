package consul

import (
	"cmp"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/resdb/backend"
)

// ConsulBackend stores content-addressed blobs in the HashiCorp Consul KV store.
//
// Architecture:
// - Each blob is one KV entry below the configured prefix, keyed by its hash
// - Entries are never rewritten, a put of an existing hash is a no-op
//
// Limitations:
// - Consul KV has a 512KB limit per value, larger blobs are rejected up front
// - Best suited for small assets next to a metadata backend without blob support
type ConsulBackend struct {
	mu     sync.RWMutex
	client *api.Client
	kv     *api.KV

	// Configuration
	config *ConsulBackendConfig
}

// ConsulBackendConfig contains configuration options for the Consul backend.
// Address defaults to "127.0.0.1:8500" and Prefix to "resdb/blobs".
type ConsulBackendConfig struct {
	Address    string
	Token      string
	Datacenter string
	Namespace  string
	Prefix     string
}

// maxObjectSize stays below the 512KB Consul limit
const maxObjectSize = 500 * 1024

func (c ConsulBackendConfig) apiConfig() *api.Config {
	cfg := api.DefaultConfig()
	cfg.Address = cmp.Or(c.Address, "127.0.0.1:8500")
	cfg.Token = cmp.Or(c.Token, cfg.Token)
	cfg.Datacenter = cmp.Or(c.Datacenter, cfg.Datacenter)
	cfg.Namespace = cmp.Or(c.Namespace, cfg.Namespace)
	return cfg
}

// NewConsulBackend creates a blob backend talking to the configured agent.
func NewConsulBackend(config *ConsulBackendConfig) (*ConsulBackend, error) {
	var cfg ConsulBackendConfig
	if config != nil {
		cfg = *config
	}
	cfg.Prefix = cmp.Or(strings.Trim(cfg.Prefix, "/"), "resdb/blobs")

	client, err := api.NewClient(cfg.apiConfig())
	if err != nil {
		return nil, fmt.Errorf("consul: %w", err)
	}

	return &ConsulBackend{
		client: client,
		kv:     client.KV(),
		config: &cfg,
	}, nil
}

// Name returns the identifier name defined for this backend
func (*ConsulBackend) Name() string {
	return "consul"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend
func (cb *ConsulBackend) Open(ctx context.Context) error {
	// Fail early when the agent is unreachable
	_, err := cb.client.Status().Leader()
	return err
}

// Close is part of the lifecycle behaviour and gets called when closing this backend
func (cb *ConsulBackend) Close(ctx context.Context) error {
	// Nothing to clean up - Consul client is stateless
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend
func (cb *ConsulBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityBlob,
		},
		MaxObjectSize: maxObjectSize,
	}
}

// buildKey constructs the full Consul KV key for a blob hash
func (cb *ConsulBackend) buildKey(hash string) string {
	return cb.config.Prefix + "/" + hash
}
