package backend

import "slices"

type Capability string

const (
	// Core capabilities by backend
	CapabilityMetadata Capability = "metadata"
	CapabilityBlob     Capability = "blob"

	// Metadata backends that keep the commit log and per-path revisions
	CapabilityHistory Capability = "history"
)

// Capabilities describes what a backend supports
type Capabilities struct {
	Capabilities []Capability
	// MaxObjectSize limits a single blob in bytes, 0 means unlimited
	MaxObjectSize int64
}

// Contains checks if a capability is supported
func (c *Capabilities) Contains(cap Capability) bool {
	return slices.Contains(c.Capabilities, cap)
}
