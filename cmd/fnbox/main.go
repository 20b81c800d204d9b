package main

import (
	"os"

	"fnbox/sandbox"
)

func main() {
	// Sandbox workers re-execute this binary; dispatch before any CLI
	// parsing so worker processes never touch cobra.
	if sandbox.IsWorker() {
		os.Exit(sandbox.WorkerMain())
	}
	Execute()
}
