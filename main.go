// The main package for the servicetags executable.
package main

import (
	"github.com/JakeFAU/servicetags-publisher/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
