// Package scheduler fires the time events stored on resources.
//
// Every tick collects all resources whose next_time_event is due and runs
// their callbacks inside a single read-write transaction. Any failure aborts
// the whole run, so either all due events of a tick take effect or none.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mwantia/resdb"
	"github.com/mwantia/resdb/catalog"
	"github.com/mwantia/resdb/data"
	"github.com/mwantia/resdb/gate"
	"github.com/mwantia/resdb/log"
	"github.com/mwantia/resdb/resource"
)

// CommitMessage is recorded for every scheduler commit.
const CommitMessage = "cron"

type State int32

const (
	Idle State = iota
	Scanning
	Firing
	Committing
)

func (s State) String() string {
	switch s {
	case Scanning:
		return "scanning"
	case Firing:
		return "firing"
	case Committing:
		return "committing"
	default:
		return "idle"
	}
}

// Runner opens transactions; *resdb.Database implements it.
type Runner interface {
	Begin(ctx context.Context, mode gate.Mode, opts ...resdb.TxOption) (*resdb.Transaction, error)
}

type Scheduler struct {
	db      Runner
	options *Options
	log     *log.Logger

	state  atomic.Int32
	firing atomic.Int32
}

func New(db Runner, opts ...Option) *Scheduler {
	options := newDefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	s := &Scheduler{
		db:      db,
		options: options,
		log:     options.Logger,
	}
	if s.log == nil {
		s.log = log.Discard()
	}
	if s.options.Notifier == nil {
		s.options.Notifier = &LogNotifier{Logger: s.log}
	}

	return s
}

// State returns the current phase and, while firing, the index of the event.
func (s *Scheduler) State() (State, int) {
	return State(s.state.Load()), int(s.firing.Load())
}

func (s *Scheduler) setState(state State) {
	s.state.Store(int32(state))
}

// Tick processes all due events once and returns the delay until the next
// tick. Failures are reported to the notifier before they are returned.
func (s *Scheduler) Tick(ctx context.Context) (time.Duration, error) {
	interval := s.options.Interval
	start := time.Now()

	s.setState(Scanning)
	defer s.setState(Idle)

	tx, err := s.db.Begin(ctx, gate.ReadWrite, resdb.WithMessage(CommitMessage))
	if err != nil {
		return interval, s.fail(ctx, "", fmt.Errorf("failed to begin: %w", err))
	}

	// Handlers run on the transaction's context so nested admissions are refused.
	txCtx := tx.Context()

	result, err := tx.Search(txCtx, catalog.Range(catalog.FieldNextTimeEvent, nil, s.options.Now()), catalog.SearchOptions{
		SortBy: catalog.FieldNextTimeEvent,
	})
	if err != nil {
		tx.Abort()
		return interval, s.fail(ctx, "", fmt.Errorf("failed to search due events: %w", err))
	}
	if result.Total == 0 {
		tx.Abort()
		return interval, nil
	}

	s.setState(Firing)
	for i, hit := range result.Hits {
		s.firing.Store(int32(i))

		if err := s.fire(txCtx, tx, hit.Path); err != nil {
			tx.Abort()
			return interval, s.fail(ctx, hit.Path, err)
		}
	}

	s.setState(Committing)
	if err := tx.Commit(ctx); err != nil {
		return interval, s.fail(ctx, "", fmt.Errorf("failed to commit: %w", err))
	}

	resdb.SchedulerRuns.WithLabelValues("success").Inc()
	resdb.FiredEvents.Add(float64(len(result.Hits)))
	s.log.Info("cron: %d resources in %.2fs", len(result.Hits), time.Since(start).Seconds())

	return interval, nil
}

func (s *Scheduler) fire(ctx context.Context, tx *resdb.Transaction, path string) error {
	res, err := tx.Get(ctx, path)
	if err != nil {
		return err
	}

	handler, ok := res.(resource.TimeEventHandler)
	if !ok {
		return fmt.Errorf("resource of class '%s' does not handle time events", res.Record().ClassID)
	}

	rec := res.Record()
	due := rec.GetValue(data.PropertyNextTimeEvent, "")
	payload := rec.GetValue(data.PropertyNextTimeEventPayload, "")
	if err := handler.TimeEvent(ctx, tx, payload); err != nil {
		return err
	}

	// A handler that did not reschedule is done with this event.
	if rec.GetValue(data.PropertyNextTimeEvent, "") == due {
		rec.Delete(data.PropertyNextTimeEvent)
		rec.Delete(data.PropertyNextTimeEventPayload)
	}

	return tx.MarkDirty(ctx, res.Path())
}

func (s *Scheduler) fail(ctx context.Context, path string, err error) error {
	resdb.SchedulerRuns.WithLabelValues("failure").Inc()
	if path != "" {
		err = fmt.Errorf("time event of '%s': %w", path, err)
	}

	s.log.Error("cron aborted: %v", err)
	s.options.Notifier.Notify(ctx, err)
	return err
}

// Run ticks until ctx is done. An interval of zero runs a single tick.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		interval, err := s.Tick(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if interval <= 0 {
			return err
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
