// Package main provides the stackctl CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/architect-io/stackctl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
