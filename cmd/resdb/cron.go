package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mwantia/resdb/scheduler"
)

var cronOnce bool

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Run the time-event scheduler",
	Long: `Run the time-event scheduler until interrupted.

With --once a single tick is processed and the command exits. Only plain
resources are known to this binary: a due resource of an application class
fails the run, and the run is retried on the next tick.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, cfg, err := openDatabase(ctx, false)
		if err != nil {
			return err
		}
		defer db.Close(context.WithoutCancel(ctx))

		interval, err := cfg.Scheduler.ParseInterval()
		if err != nil {
			return err
		}
		if cronOnce {
			interval = 0
		}

		s := scheduler.New(db,
			scheduler.WithInterval(interval),
			scheduler.WithLogger(db.Logger().Named("scheduler")),
		)

		if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	cronCmd.Flags().BoolVar(&cronOnce, "once", false, "process a single tick and exit")
	rootCmd.AddCommand(cronCmd)
}
