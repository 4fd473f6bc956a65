package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mwantia/resdb"
	"github.com/mwantia/resdb/config"
	"github.com/mwantia/resdb/resource"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "resdb",
	Short: "Operate a resource database",
	Long: `resdb is a command-line interface for operating a resource database.

It reads the TOML configuration given with --config and provides commands to
inspect resources, search the catalog, read the commit history, rebuild the
catalog and run the time-event scheduler.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "resdb.toml", "path to the configuration file")
}

// openDatabase opens the database described by the configuration file.
// Inspection commands pass readOnly so they can never write to the store.
func openDatabase(ctx context.Context, readOnly bool) (*resdb.Database, *config.Config, error) {
	cfg, err := config.ReadFromFile(configPath)
	if err != nil {
		return nil, nil, err
	}
	if readOnly {
		cfg.Store.ReadOnly = true
	}

	// The CLI does not link application kinds. Unknown classes must fail a
	// rebuild instead of being indexed as plain resources.
	registry, err := resource.NewRegistry()
	if err != nil {
		return nil, nil, err
	}
	registry.SetFallback("")

	db, err := resdb.OpenConfig(ctx, cfg, registry)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}
