// The main package for the corpuscrawler executable.
package main

import (
	"corpuscrawler/cmd"
)

func main() {
	cmd.Execute()
}
