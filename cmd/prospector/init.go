package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"prospector/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration to .prospector/config.json",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		if err := cfg.Save("."); err != nil {
			return fmt.Errorf("failed to write configuration: %w", err)
		}
		fmt.Println("Wrote .prospector/config.json")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
