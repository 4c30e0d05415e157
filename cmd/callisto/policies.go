package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/config"
)

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "List the policies declared in the configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		input, output, err := cfg.Guardrails.BuildPolicies()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tFLAVOR\tDESCRIPTION")
		for _, p := range input {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name(), p.Flavor(), p.Description())
		}
		for _, p := range output {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name(), p.Flavor(), p.Description())
		}
		return w.Flush()
	},
}
