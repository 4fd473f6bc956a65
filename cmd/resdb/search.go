package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwantia/resdb/catalog"
)

var (
	searchField   string
	searchValue   string
	searchSort    string
	searchReverse bool
	searchLimit   int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the catalog",
	Long: `Search the catalog for documents where a field has a value.

Without --field every document matches.

Examples:
  resdb search --field format --value menu
  resdb search --field title --value "hello world" --sort mtime --reverse`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, _, err := openDatabase(ctx, true)
		if err != nil {
			return err
		}
		defer db.Close(ctx)

		query := catalog.All()
		if searchField != "" {
			query = catalog.Equal(searchField, searchValue)
		}

		result, err := db.Search(ctx, query, catalog.SearchOptions{
			SortBy:  searchSort,
			Reverse: searchReverse,
			Size:    searchLimit,
		})
		if err != nil {
			return err
		}

		if result.Total == 0 {
			fmt.Println("No results found")
			return nil
		}

		for _, hit := range result.Hits {
			title, _ := hit.Fields[catalog.FieldTitle].(string)
			fmt.Printf("%s %s\n", hit.Path, title)
		}
		fmt.Printf("%d of %d results\n", len(result.Hits), result.Total)
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVarP(&searchField, "field", "f", "", "field to match")
	searchCmd.Flags().StringVarP(&searchValue, "value", "v", "", "value the field must have")
	searchCmd.Flags().StringVarP(&searchSort, "sort", "s", "", "field to sort by")
	searchCmd.Flags().BoolVarP(&searchReverse, "reverse", "r", false, "reverse the sort order")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 50, "maximum number of results, 0 for all")
	rootCmd.AddCommand(searchCmd)
}
