package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwantia/resdb/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(configPath, config.Default()); err != nil {
			return err
		}

		fmt.Printf("Wrote configuration to %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
