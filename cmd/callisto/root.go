package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "callisto",
	Short: "Guardrail middleware for generative model calls",
	Long: `Callisto wraps generative model calls with configurable input and
output guardrail pipelines: concurrent policy evaluation, a decision
gate (block, warn, or replace), bounded regenerate-on-block retries,
and progressive streaming enforcement.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "callisto.yaml", "path to configuration file")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(policiesCmd)
	rootCmd.AddCommand(versionCmd)
}
