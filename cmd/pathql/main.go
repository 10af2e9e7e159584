// Command pathql resolves, compiles and runs field-path queries.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/pathql/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			// Cobra flag and argument errors are not printed by the commands.
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(cli.ExitCommandError)
		}
		os.Exit(exitErr.Code)
	}
}
