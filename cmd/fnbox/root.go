package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fnbox",
	Short: "Sandboxed function registry and executor",
	Long: `fnbox - Register user-defined functions, validate them, and run them
in isolated worker processes under time and memory budgets.

Every function goes through a safety gate before anything is stored, every
code change becomes an immutable version, and every run leaves a ledger row.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
}
