package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [path]",
	Short: "Show the commit history",
	Long: `Show the most recent commits, newest first.

With a path the committed revisions of that resource are shown instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, _, err := openDatabase(ctx, true)
		if err != nil {
			return err
		}
		defer db.Close(ctx)

		if len(args) == 1 {
			revisions, err := db.Revisions(ctx, args[0])
			if err != nil {
				return err
			}
			for _, rev := range revisions {
				state := "put"
				if rev.Deleted {
					state = "deleted"
				}
				fmt.Printf("%s %s %s\n", rev.CommitID, rev.Time.Format("2006-01-02 15:04:05"), state)
			}
			return nil
		}

		commits, err := db.History(ctx, historyLimit)
		if err != nil {
			return err
		}
		for _, commit := range commits {
			fmt.Printf("%s %s %-12s %s\n", commit.ID, commit.Time.Format("2006-01-02 15:04:05"), commit.AuthorID, commit.Message)
			if len(commit.Paths) > 0 {
				fmt.Printf("    %s\n", strings.Join(commit.Paths, " "))
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of commits to show, 0 for all")
	rootCmd.AddCommand(historyCmd)
}
