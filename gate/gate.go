// Package gate admits either many concurrent read-only transactions or exactly
// one read-write transaction.
//
// Two weighted semaphores are used: an exclusive one with a single slot and a
// reader one with N slots. Readers pass through the exclusive semaphore
// (acquire, then release) before taking a reader slot, so they queue behind a
// writer that already holds it. Writers keep the exclusive slot and then drain
// all reader slots. Both semaphores are FIFO, which keeps writers from starving.
package gate

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "read-write"
	}
	return "read-only"
}

type Gate struct {
	slots     int64
	exclusive *semaphore.Weighted
	readers   *semaphore.Weighted

	activeReaders atomic.Int64
	writer        atomic.Bool
}

// Stats is a point-in-time view of the gate.
type Stats struct {
	Slots         int
	ActiveReaders int
	Writer        bool
}

// New creates a gate with the given number of reader slots; values below 1 mean 1.
func New(readers int) *Gate {
	if readers < 1 {
		readers = 1
	}

	return &Gate{
		slots:     int64(readers),
		exclusive: semaphore.NewWeighted(1),
		readers:   semaphore.NewWeighted(int64(readers)),
	}
}

// Acquire blocks until the requested admission is granted or ctx is done.
// On error nothing is held.
func (g *Gate) Acquire(ctx context.Context, mode Mode) (*Handle, error) {
	if mode == ReadWrite {
		return g.acquireWrite(ctx)
	}
	return g.acquireRead(ctx)
}

func (g *Gate) acquireRead(ctx context.Context) (*Handle, error) {
	// Wait for any in-flight writer
	if err := g.exclusive.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	g.exclusive.Release(1)

	if err := g.readers.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	g.activeReaders.Add(1)

	return &Handle{gate: g, mode: ReadOnly}, nil
}

func (g *Gate) acquireWrite(ctx context.Context) (*Handle, error) {
	if err := g.exclusive.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	// Drain every reader slot so no reader is mid-transaction
	if err := g.readers.Acquire(ctx, g.slots); err != nil {
		g.exclusive.Release(1)
		return nil, err
	}
	g.writer.Store(true)

	return &Handle{gate: g, mode: ReadWrite}, nil
}

func (g *Gate) Stats() Stats {
	return Stats{
		Slots:         int(g.slots),
		ActiveReaders: int(g.activeReaders.Load()),
		Writer:        g.writer.Load(),
	}
}

// Handle is a granted admission. It must be released exactly once.
type Handle struct {
	once sync.Once
	gate *Gate
	mode Mode
}

func (h *Handle) Mode() Mode {
	return h.mode
}

// Release returns the admission. It reports false when the handle was already released.
func (h *Handle) Release() bool {
	released := false
	h.once.Do(func() {
		released = true
		if h.mode == ReadWrite {
			h.gate.writer.Store(false)
			h.gate.readers.Release(h.gate.slots)
			h.gate.exclusive.Release(1)
			return
		}

		h.gate.activeReaders.Add(-1)
		h.gate.readers.Release(1)
	})

	return released
}
