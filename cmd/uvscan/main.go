package main

import (
	"os"

	"github.com/wonny/uvscan/cmd/uvscan/commands"
)

// main is the entry point for the uvscan CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/uvscan [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
