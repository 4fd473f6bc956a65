package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the catalog from the store",
	Long: `Rebuild the catalog from the store and save it.

Resources of classes unknown to this binary fail the rebuild and the previous
catalog is kept. Applications with own resource classes reindex through
Database.ReindexAll.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, _, err := openDatabase(ctx, false)
		if err != nil {
			return err
		}
		defer db.Close(ctx)

		count, err := db.ReindexAll(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Reindexed %d documents\n", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
