// The main package for the samcrawler executable.
package main

import (
	"github.com/JakeFAU/sam-opportunity-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
