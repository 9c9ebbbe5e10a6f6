// The main package for the keywordcrawler executable.
package main

import (
	"github.com/JakeFAU/keyword-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
