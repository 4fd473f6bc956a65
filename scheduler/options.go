package scheduler

import (
	"context"
	"time"

	"github.com/mwantia/resdb/log"
)

const DefaultInterval = time.Minute

// Notifier reaches an operator when a run was aborted.
type Notifier interface {
	Notify(ctx context.Context, err error)
}

// LogNotifier reports aborted runs as errors on a logger.
type LogNotifier struct {
	Logger *log.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, err error) {
	n.Logger.Error("operator notification: %v", err)
}

type Options struct {
	Interval time.Duration
	Notifier Notifier
	Logger   *log.Logger
	Now      func() time.Time
}

type Option func(*Options)

func newDefaultOptions() *Options {
	return &Options{
		Interval: DefaultInterval,
		Now:      time.Now,
	}
}

// WithInterval sets the delay between ticks; zero runs a single tick.
func WithInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = interval
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(opts *Options) {
		opts.Notifier = notifier
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithClock replaces the time source used to decide which events are due.
func WithClock(now func() time.Time) Option {
	return func(opts *Options) {
		opts.Now = now
	}
}
