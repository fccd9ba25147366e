// Package main is the entry point for the styx CLI.
// The CLI is the terminal client for driving acquisitions against a styx daemon.
package main

import (
	"os"

	"github.com/SherwinAllen/styx/cmd/styx/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
