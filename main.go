// The main package for the bizdir executable.
package main

import (
	"github.com/openlocal/bizdir-ingest/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
