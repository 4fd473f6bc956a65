package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mwantia/resdb"
	"github.com/mwantia/resdb/catalog"
	"github.com/mwantia/resdb/data"
	"github.com/mwantia/resdb/gate"
	"github.com/mwantia/resdb/resource"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// job counts its runs and reschedules itself an hour later. Payload "once"
// skips the reschedule, "nest" tries to open a second transaction first.
type job struct {
	*resource.Base
	db *resdb.Database
}

func (j *job) TimeEvent(ctx context.Context, tx resource.Tx, payload string) error {
	switch payload {
	case "fail":
		return errors.New("job failed")
	case "nest":
		if _, err := j.db.Begin(ctx, gate.ReadOnly); !errors.Is(err, data.ErrAlreadyLocked) {
			return fmt.Errorf("expected nested begin to be refused, got %v", err)
		}
		if _, err := j.db.Search(ctx, catalog.All(), catalog.SearchOptions{}); err != nil {
			return err
		}
	}

	runs, _ := strconv.Atoi(j.Get("runs"))
	j.Set("runs", strconv.Itoa(runs+1))
	if payload == "once" {
		return nil
	}

	due, _, _ := j.NextTimeEvent()
	j.SetNextTimeEvent(due.Add(time.Hour), payload)
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	errs []error
}

func (n *recordingNotifier) Notify(ctx context.Context, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

func openDatabase(tst *testing.T) *resdb.Database {
	tst.Helper()

	var db *resdb.Database
	registry, err := resource.NewRegistry(resource.Kind{
		ClassID: "job",
		Version: 1,
		New: func(rec *data.Record) resource.Resource {
			return &job{Base: resource.NewBase(rec), db: db}
		},
	})
	if err != nil {
		tst.Fatalf("NewRegistry failed: %v", err)
	}

	db, err = resdb.Open(tst.Context(), resdb.WithRegistry(registry))
	if err != nil {
		tst.Fatalf("Open failed: %v", err)
	}
	tst.Cleanup(func() {
		db.Close(context.Background())
	})
	return db
}

// schedule creates one job per payload, due one minute apart before now.
func schedule(tst *testing.T, db *resdb.Database, payloads ...string) {
	tst.Helper()
	ctx := tst.Context()

	tx, err := db.Begin(ctx, gate.ReadWrite)
	if err != nil {
		tst.Fatalf("Begin failed: %v", err)
	}
	for i, payload := range payloads {
		res, err := tx.Create(ctx, "/", "", "job", nil)
		if err != nil {
			tst.Fatalf("Create failed: %v", err)
		}
		due := now.Add(-time.Duration(len(payloads)-i) * time.Minute)
		res.(*job).SetNextTimeEvent(due, payload)
	}
	if err := tx.Commit(ctx); err != nil {
		tst.Fatalf("Commit failed: %v", err)
	}
}

func dueCount(tst *testing.T, db *resdb.Database) int {
	tst.Helper()

	result, err := db.Search(tst.Context(), catalog.Range(catalog.FieldNextTimeEvent, nil, now), catalog.SearchOptions{})
	if err != nil {
		tst.Fatalf("Search failed: %v", err)
	}
	return result.Total
}

func runs(tst *testing.T, db *resdb.Database, path string) string {
	tst.Helper()
	ctx := tst.Context()

	tx, err := db.Begin(ctx, gate.ReadOnly)
	if err != nil {
		tst.Fatalf("Begin failed: %v", err)
	}
	defer tx.Abort()

	res, err := tx.Get(ctx, path)
	if err != nil {
		tst.Fatalf("Get failed: %v", err)
	}
	return res.(*job).Get("runs")
}

func TestScheduler_FiresDueEvents(tst *testing.T) {
	db := openDatabase(tst)
	schedule(tst, db, "a", "b")

	s := New(db, WithClock(func() time.Time { return now }), WithInterval(time.Second))
	interval, err := s.Tick(tst.Context())
	if err != nil {
		tst.Fatalf("Tick failed: %v", err)
	}
	if interval != time.Second {
		tst.Errorf("Expected interval 1s, got %v", interval)
	}

	if n := dueCount(tst, db); n != 0 {
		tst.Errorf("Expected no due events after the tick, got %d", n)
	}
	for _, path := range []string{"/1", "/2"} {
		if r := runs(tst, db, path); r != "1" {
			tst.Errorf("Expected %s to run once, got '%s'", path, r)
		}
	}

	history, err := db.History(tst.Context(), 1)
	if err != nil {
		tst.Fatalf("History failed: %v", err)
	}
	if history[0].Message != CommitMessage {
		tst.Errorf("Expected commit message '%s', got '%s'", CommitMessage, history[0].Message)
	}
	if state, _ := s.State(); state != Idle {
		tst.Errorf("Expected idle state, got %s", state)
	}
}

func TestScheduler_FailureAbortsWholeRun(tst *testing.T) {
	db := openDatabase(tst)
	schedule(tst, db, "ok", "fail")

	notifier := &recordingNotifier{}
	s := New(db, WithClock(func() time.Time { return now }), WithNotifier(notifier))

	interval, err := s.Tick(tst.Context())
	if err == nil {
		tst.Fatalf("Expected tick to fail")
	}
	if interval != DefaultInterval {
		tst.Errorf("Expected default interval, got %v", interval)
	}
	if len(notifier.errs) != 1 {
		tst.Errorf("Expected one notification, got %d", len(notifier.errs))
	}

	if n := dueCount(tst, db); n != 2 {
		tst.Errorf("Expected both events to stay due, got %d", n)
	}
	if r := runs(tst, db, "/1"); r != "" {
		tst.Errorf("Expected the first job to be rolled back, got runs '%s'", r)
	}
}

func TestScheduler_HandlersRunInsideTheTransaction(tst *testing.T) {
	db := openDatabase(tst)
	schedule(tst, db, "nest")

	ctx, cancel := context.WithTimeout(tst.Context(), 5*time.Second)
	defer cancel()

	s := New(db, WithClock(func() time.Time { return now }))
	if _, err := s.Tick(ctx); err != nil {
		tst.Fatalf("Tick failed: %v", err)
	}
	if r := runs(tst, db, "/1"); r != "1" {
		tst.Errorf("Expected the job to run once, got '%s'", r)
	}
}

func TestScheduler_ClearsEventsNotRescheduled(tst *testing.T) {
	db := openDatabase(tst)
	schedule(tst, db, "once")

	s := New(db, WithClock(func() time.Time { return now }))
	for range 2 {
		if _, err := s.Tick(tst.Context()); err != nil {
			tst.Fatalf("Tick failed: %v", err)
		}
	}

	if r := runs(tst, db, "/1"); r != "1" {
		tst.Errorf("Expected a single run, got '%s'", r)
	}
	if n := dueCount(tst, db); n != 0 {
		tst.Errorf("Expected no due events, got %d", n)
	}

	tx, err := db.Begin(tst.Context(), gate.ReadOnly)
	if err != nil {
		tst.Fatalf("Begin failed: %v", err)
	}
	defer tx.Abort()

	res, err := tx.Get(tst.Context(), "/1")
	if err != nil {
		tst.Fatalf("Get failed: %v", err)
	}
	if _, _, ok := res.(*job).NextTimeEvent(); ok {
		tst.Error("Expected next_time_event to be cleared")
	}
}

func TestScheduler_NothingDue(tst *testing.T) {
	db := openDatabase(tst)

	s := New(db, WithClock(func() time.Time { return now }))
	if _, err := s.Tick(tst.Context()); err != nil {
		tst.Fatalf("Tick failed: %v", err)
	}

	history, err := db.History(tst.Context(), 0)
	if err != nil {
		tst.Fatalf("History failed: %v", err)
	}
	if len(history) != 0 {
		tst.Errorf("Expected no commit for an empty run, got %d", len(history))
	}
}

func TestScheduler_RejectsResourcesWithoutHandler(tst *testing.T) {
	db := openDatabase(tst)
	ctx := tst.Context()

	tx, err := db.Begin(ctx, gate.ReadWrite)
	if err != nil {
		tst.Fatalf("Begin failed: %v", err)
	}
	res, err := tx.Create(ctx, "/", "plain", "", nil)
	if err != nil {
		tst.Fatalf("Create failed: %v", err)
	}
	res.(*resource.Base).SetNextTimeEvent(now.Add(-time.Minute), "")
	if err := tx.Commit(ctx); err != nil {
		tst.Fatalf("Commit failed: %v", err)
	}

	s := New(db, WithClock(func() time.Time { return now }), WithNotifier(&recordingNotifier{}))
	if _, err := s.Tick(ctx); err == nil {
		tst.Errorf("Expected tick to fail for a resource without handler")
	}
}

func TestScheduler_RunWithZeroInterval(tst *testing.T) {
	db := openDatabase(tst)
	schedule(tst, db, "a")

	s := New(db, WithClock(func() time.Time { return now }), WithInterval(0))
	if err := s.Run(tst.Context()); err != nil {
		tst.Fatalf("Run failed: %v", err)
	}
	if r := runs(tst, db, "/1"); r != "1" {
		tst.Errorf("Expected a single run, got '%s'", r)
	}
}

func TestScheduler_RunStopsOnCancel(tst *testing.T) {
	db := openDatabase(tst)

	ctx, cancel := context.WithTimeout(tst.Context(), 20*time.Millisecond)
	defer cancel()

	s := New(db, WithInterval(time.Millisecond))
	if err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		tst.Errorf("Expected deadline error, got %v", err)
	}
}
