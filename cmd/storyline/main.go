// Command storyline runs plain text behaviour stories.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/storyline/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
