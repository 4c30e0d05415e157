// Command callisto is the guardrail engine's command-line interface: it
// validates configuration files and inspects the policy pipelines they
// declare.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
