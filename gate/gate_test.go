package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGate_ConcurrentReaders(t *testing.T) {
	ctx := t.Context()
	g := New(3)

	handles := make([]*Handle, 0, 3)
	for range 3 {
		h, err := g.Acquire(ctx, ReadOnly)
		if err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		handles = append(handles, h)
	}

	if stats := g.Stats(); stats.ActiveReaders != 3 || stats.Writer {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	for _, h := range handles {
		if !h.Release() {
			t.Error("Expected first release to succeed")
		}
	}
}

func TestGate_WriterExcludesReaders(t *testing.T) {
	ctx := t.Context()
	g := New(2)

	reader, err := g.Acquire(ctx, ReadOnly)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	acquired := make(chan *Handle)
	go func() {
		h, err := g.Acquire(ctx, ReadWrite)
		if err != nil {
			t.Errorf("Acquire write failed: %v", err)
		}
		acquired <- h
	}()

	select {
	case <-acquired:
		t.Fatal("Writer must wait for the active reader")
	case <-time.After(50 * time.Millisecond):
	}

	// A reader arriving after the writer queued must wait as well
	late := make(chan *Handle)
	go func() {
		h, err := g.Acquire(ctx, ReadOnly)
		if err != nil {
			t.Errorf("Acquire read failed: %v", err)
		}
		late <- h
	}()

	reader.Release()

	writer := <-acquired
	select {
	case <-late:
		t.Fatal("Late reader must not run while the writer holds the gate")
	case <-time.After(50 * time.Millisecond):
	}

	if !g.Stats().Writer {
		t.Error("Expected writer flag to be set")
	}

	writer.Release()
	(<-late).Release()
}

func TestGate_WritersAreSerialized(t *testing.T) {
	ctx := t.Context()
	g := New(4)

	var inside atomic.Int32
	var overlaps atomic.Int32
	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := g.Acquire(ctx, ReadWrite)
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			if inside.Add(1) > 1 {
				overlaps.Add(1)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			h.Release()
		}()
	}
	wg.Wait()

	if overlaps.Load() != 0 {
		t.Errorf("Expected no overlapping writers, got %d", overlaps.Load())
	}
}

func TestGate_CancelledAcquire(t *testing.T) {
	g := New(1)

	writer, err := g.Acquire(t.Context(), ReadWrite)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	if _, err := g.Acquire(ctx, ReadOnly); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}

	writer.Release()

	// Nothing may leak from the cancelled attempt
	h, err := g.Acquire(t.Context(), ReadWrite)
	if err != nil {
		t.Fatalf("Acquire after cancel failed: %v", err)
	}
	h.Release()
}

func TestHandle_DoubleRelease(t *testing.T) {
	g := New(1)

	h, err := g.Acquire(t.Context(), ReadOnly)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if !h.Release() {
		t.Error("Expected first release to succeed")
	}
	if h.Release() {
		t.Error("Expected second release to be a no-op")
	}
}
