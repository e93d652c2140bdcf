package main

import (
	"os"

	"smartlists/internal/logging"
)

func main() {
	defer func() { _ = logging.Sync() }()
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
