package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwantia/resdb/gate"
)

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Print the record of a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, _, err := openDatabase(ctx, true)
		if err != nil {
			return err
		}
		defer db.Close(ctx)

		tx, err := db.Begin(ctx, gate.ReadOnly)
		if err != nil {
			return err
		}
		defer tx.Abort()

		rec, err := tx.Record(ctx, args[0])
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List the children of a resource",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := "/"
		if len(args) == 1 {
			path = args[0]
		}

		db, _, err := openDatabase(ctx, true)
		if err != nil {
			return err
		}
		defer db.Close(ctx)

		tx, err := db.Begin(ctx, gate.ReadOnly)
		if err != nil {
			return err
		}
		defer tx.Abort()

		children, err := tx.ChildRecords(ctx, path)
		if err != nil {
			return err
		}

		for _, rec := range children {
			fmt.Printf("%-12s %s  %s\n", rec.ClassID, rec.ModifyTime.Format("2006-01-02 15:04:05"), rec.Path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(lsCmd)
}
