package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kms-cli/internal/cli/dispatch"
	"github.com/yndnr/kms-cli/internal/cli/repl"
)

// runShell runs the interactive shell until exit, EOF or a fatal error.
func runShell(c *cli.Context) error {
	rt := runtimeFrom(c)
	if rt == nil {
		return fmt.Errorf("shell: runtime not initialized")
	}

	history := repl.NewHistory(rt.opts.HistoryFile)
	rt.shutdown.OnShutdown(func(context.Context) error {
		return history.Save()
	})

	sh := repl.New(rt.execLine,
		repl.WithInput(rt.opts.Stdin),
		repl.WithOutput(rt.opts.Stdout),
		repl.WithHistory(history),
		repl.WithCommands(commandPaths()),
		repl.WithFatal(dispatch.IsFatal),
	)
	rt.log.Debug("shell started")
	return sh.Run(c.Context)
}

// execLine runs one shell line through a fresh command tree sharing rt.
func (rt *runtime) execLine(ctx context.Context, args []string) error {
	app := &cli.App{
		Name:           AppName,
		Usage:          "interactive shell",
		HideVersion:    true,
		Commands:       commandTree(),
		Writer:         rt.opts.Stdout,
		ErrWriter:      rt.opts.Stderr,
		Reader:         rt.opts.Stdin,
		Metadata:       map[string]any{optionsKey: rt.opts, runtimeKey: rt},
		ExitErrHandler: func(*cli.Context, error) {},
		Action:         unknownCommand,
	}
	return Run(ctx, app, append([]string{AppName}, args...))
}
