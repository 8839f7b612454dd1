package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "oeemon",
	Short: "OEE metrics and analytics service",
	Long: `oeemon computes OEE (availability x performance x quality) for production
runs, keeps per-machine live metrics over a trailing window, and reports monthly
analytics. Data lives in a primary PostgreSQL store with a local SQLite fallback
that takes over while the primary is unreachable.`,
	SilenceUsage: true,
}

var configPath string

func main() {
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: oeemon.yaml in ., ./configs, /etc/oeemon)")
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(analyticsCmd())
	rootCmd.AddCommand(calcCmd())
	rootCmd.AddCommand(syncFallbackCmd())
	rootCmd.AddCommand(snapshotCmd())
}
