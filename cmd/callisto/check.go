package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a configuration file",
	Long: `Check loads the configuration file, validates every declared policy
and engine setting, and reports what the pipeline would look like.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		input, output, err := cfg.Guardrails.BuildPolicies()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration OK: %s\n", configPath)
		fmt.Printf("  input policies:  %d\n", len(input))
		fmt.Printf("  output policies: %d\n", len(output))
		fmt.Printf("  gate:            throw=%t replace=%t\n",
			cfg.Guardrails.Gate.ThrowOnBlocked, cfg.Guardrails.Gate.ReplaceOnBlocked)
		if cfg.Guardrails.Retry.Enabled {
			fmt.Printf("  retry:           max %d attempt(s), %s backoff\n",
				cfg.Guardrails.Retry.MaxRetries, backoffName(cfg.Guardrails.Retry.Backoff))
		} else {
			fmt.Printf("  retry:           disabled\n")
		}
		fmt.Printf("  stream mode:     %s\n", cfg.Guardrails.Stream.Mode)
		if cfg.Evidence.Enabled {
			fmt.Printf("  evidence:        enabled (%s)\n", storeName(cfg.Evidence.Path))
		}
		return nil
	},
}

func backoffName(b string) string {
	if b == "" {
		return "none"
	}
	return b
}

func storeName(path string) string {
	if path == "" {
		return "in-memory"
	}
	return path
}
