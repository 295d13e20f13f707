// ============================================================================
// Hive Demo - Main Entry Point
// ============================================================================
//
// File: cmd/hive/main.go
// Purpose: Application entry point and CLI initialization
//
// Responsibilities:
//   1. Version Management - Inject build info via ldflags
//   2. Panic Recovery - Catch unexpected panics gracefully
//   3. CLI Setup - Build and configure Cobra command interface
//
// Usage:
//   ./hive --help              # Show help
//   ./hive run -n 50           # Submit 50 demo tasks
//   ./hive bench -n 100000     # Measure throughput
//
// ============================================================================

package main

import (
	"fmt"
	"os"

	"github.com/ChuLiYu/hive/internal/cli"
)

// Build-time version injection via ldflags:
// go build -ldflags "-X main.version=1.0.0"
var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	rootCmd := cli.BuildCLI()
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
