// Command docq builds and runs document queries over CUE-declared models.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/docq/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		// Command errors are already printed by the formatter.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
