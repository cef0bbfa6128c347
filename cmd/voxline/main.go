// Package main is the entry point for the voxline CLI.
//
// Usage:
//
//	voxline [flags] <command> [args]
//
// Commands:
//
//	serve    - Run the call agent server
//	creds    - Manage backend service credentials
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/voxlinehq/voxline/cmd/voxline/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
