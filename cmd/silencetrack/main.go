// Package main is the entry point for the silencetrack CLI.
//
// Usage:
//
//	silencetrack [flags] <command> [args]
//
// Commands:
//
//	analyze    - Track silent regions in an audio file
//	params     - Show the tracker parameter and output descriptors
package main

import (
	"fmt"
	"os"

	"github.com/maauso/silencetrack/cmd/silencetrack/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
