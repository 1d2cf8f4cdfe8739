package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yndnr/kms-cli/internal/cli/command"
)

func main() {
	app := command.App()

	if err := command.Run(context.Background(), app, os.Args); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "error: %v\n", msg)
		}
		os.Exit(command.ExitCode(err))
	}
}
