package main

import (
	"os"

	"github.com/wonny/prefilter/backend/cmd/prefilter/commands"
)

// main is the entry point for the pre-filter CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/prefilter [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
