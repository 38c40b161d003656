// Package main is the entry point for the promoscout CLI.
package main

import (
	"os"

	"github.com/jmylchreest/promoscout/cmd/promoscout/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
