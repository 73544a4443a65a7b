// Package main is the entry point for the logkeeper daemon and CLI.
package main

import (
	"os"

	"github.com/raoulx24/logkeeper/cmd/logkeeper/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
