package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "marketbrain",
	Short: "Self-supervising market analysis service",
	Long: `marketbrain runs the brain, scanner and maintenance loops, keeps a
ledger of predictions and chart patterns, and serves them over HTTP.`,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path")
	rootCmd.AddCommand(serveCmd, onceCmd, statusCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "marketbrain: %v\n", err)
		os.Exit(1)
	}
}
