// Command bsync compiles, runs and verifies behavioral programs.
package main

import (
	"os"

	"github.com/plaited/behavioral/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	cli.ReportError(os.Stderr, err)
	os.Exit(cli.GetExitCode(err))
}
