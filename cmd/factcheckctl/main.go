package main

import (
	"os"

	"factcheck-backend/internal/shared/telemetry"
)

func main() {
	err := newRootCmd().Execute()
	telemetry.Sync()
	if err != nil {
		os.Exit(1)
	}
}
