// Command rdsquote is a command-line client for the RDS quoting backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/rdsquote/internal/cli"
)

func main() {
	err := cli.NewRootCommand().ExecuteContext(context.Background())
	if err == nil {
		os.Exit(cli.ExitSuccess)
	}

	// Commands report their own failures; anything else is a cobra usage error.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCommandError)
	}
	os.Exit(exitErr.Code)
}
