package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kms-cli/internal/cli/config"
	"github.com/yndnr/kms-cli/internal/cli/dispatch"
)

var groupUsage = map[string]string{
	"ns":     "Manage namespaces",
	"key":    "Manage keys",
	"secret": "Manage secrets",
}

// commandTree builds fresh cli.Commands for every registered command.
// urfave mutates commands while running, so each app gets its own tree.
func commandTree() []*cli.Command {
	var (
		commands []*cli.Command
		groups   = map[string]*cli.Command{}
	)

	for _, spec := range dispatch.Commands() {
		path := spec.Path()
		if len(path) == 1 {
			commands = append(commands, leafCommand(spec, path[0]))
			continue
		}

		group, ok := groups[path[0]]
		if !ok {
			group = &cli.Command{
				Name:  path[0],
				Usage: groupUsage[path[0]],
			}
			groups[path[0]] = group
			commands = append(commands, group)
		}
		group.Subcommands = append(group.Subcommands, leafCommand(spec, path[1]))
	}
	return commands
}

// commandPaths lists full command names for shell completion.
func commandPaths() []string {
	specs := dispatch.Commands()
	paths := make([]string, 0, len(specs))
	for _, spec := range specs {
		paths = append(paths, spec.Name)
	}
	return paths
}

func leafCommand(spec dispatch.CommandSpec, name string) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "config file",
			Value:   config.DefaultPath,
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "server address (host:port), overrides the config file",
		},
	}
	if spec.Has(dispatch.FlagAll) {
		flags = append(flags, &cli.BoolFlag{
			Name:    "all",
			Aliases: []string{"a"},
			Usage:   "include inactive entries",
		})
	}
	if spec.Has(dispatch.FlagDisable) {
		flags = append(flags, &cli.BoolFlag{
			Name:    "disable",
			Aliases: []string{"d"},
			Usage:   "disable instead of issuing a new token",
		})
	}
	if spec.Has(dispatch.FlagOutFile) {
		flags = append(flags, &cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Usage:   "write the result to `FILE`",
		})
	}

	return &cli.Command{
		Name:      name,
		Usage:     spec.Usage,
		ArgsUsage: spec.ArgsUsage(),
		Flags:     flags,
		Action:    runCommand(spec),
	}
}

// runCommand returns the action that hands one invocation to the
// Dispatcher.
func runCommand(spec dispatch.CommandSpec) cli.ActionFunc {
	return func(c *cli.Context) error {
		rt := runtimeFrom(c)
		if rt == nil {
			return fmt.Errorf("%s: runtime not initialized", spec.Name)
		}

		switch n := c.NArg(); {
		case n < len(spec.Params):
			printUsageError(c, "missing required argument '%s'", spec.Params[n])
			return &reportedError{err: errUsage}
		case n > len(spec.Params):
			printUsageError(c, "too many arguments for '%s'. Expected %d arguments but got %d.",
				spec.Name, len(spec.Params), n)
			return &reportedError{err: errUsage}
		}

		values := make(map[string]string, len(spec.Params))
		for i, p := range spec.Params {
			values[p] = c.Args().Get(i)
		}

		_, err := rt.dispatcher.Dispatch(c.Context, dispatch.Request{
			Command:    spec.Name,
			ConfigPath: c.String("config"),
			Server:     c.String("server"),
			Args: dispatch.Args{
				Values:  values,
				All:     c.Bool("all"),
				Disable: c.Bool("disable"),
				OutFile: c.String("out"),
			},
		})
		if err != nil {
			return &reportedError{err: err}
		}
		return nil
	}
}

func printUsageError(c *cli.Context, format string, args ...any) {
	fmt.Fprintf(c.App.Writer, "error: "+format+"\n", args...)
}
