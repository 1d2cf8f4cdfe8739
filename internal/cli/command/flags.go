package command

import (
	"context"
	"strings"

	"github.com/urfave/cli/v2"
)

// Run runs app with args, accepting leaf options anywhere after the
// command name (`ns reset n1 -d`, `encrypt ns1 k1 in -o out`).
func Run(ctx context.Context, app *cli.App, args []string) error {
	return app.RunContext(ctx, hoistFlags(app, args))
}

// hoistFlags moves the options of the addressed leaf command, with their
// values, ahead of its positional arguments. urfave/cli stops reading
// flags at the first argument. Anything after "--" stays positional.
func hoistFlags(app *cli.App, args []string) []string {
	if len(args) < 2 {
		return args
	}

	i := skipFlags(app.Flags, args, 1)
	if i >= len(args) {
		return args
	}
	cmd := app.Command(args[i])
	if cmd == nil {
		return args
	}
	i++
	for len(cmd.Subcommands) > 0 {
		i = skipFlags(cmd.Flags, args, i)
		if i >= len(args) {
			return args
		}
		cmd = subcommand(cmd, args[i])
		if cmd == nil {
			return args
		}
		i++
	}

	var (
		flags      []string
		positional []string
		dashed     bool
	)
	rest := args[i:]
	for j := 0; j < len(rest); j++ {
		arg := rest[j]
		if arg == "--" {
			positional = append(positional, rest[j+1:]...)
			dashed = true
			break
		}
		if !isFlag(arg) {
			positional = append(positional, arg)
			continue
		}
		flags = append(flags, arg)
		if needsValue(cmd.Flags, arg) && j+1 < len(rest) {
			j++
			flags = append(flags, rest[j])
		}
	}

	out := make([]string, 0, len(args)+1)
	out = append(out, args[:i]...)
	out = append(out, flags...)
	if dashed {
		out = append(out, "--")
	}
	return append(out, positional...)
}

// skipFlags returns the index of the first argument at or after i that is
// not one of flags or a flag value.
func skipFlags(flags []cli.Flag, args []string, i int) int {
	for i < len(args) && isFlag(args[i]) && args[i] != "--" {
		if needsValue(flags, args[i]) {
			i++
		}
		i++
	}
	return i
}

func subcommand(cmd *cli.Command, name string) *cli.Command {
	for _, sub := range cmd.Subcommands {
		if sub.HasName(name) {
			return sub
		}
	}
	return nil
}

func isFlag(arg string) bool {
	return len(arg) > 1 && arg[0] == '-'
}

// needsValue reports whether arg names a value flag given without an
// inline "=value".
func needsValue(flags []cli.Flag, arg string) bool {
	name := strings.TrimLeft(arg, "-")
	if strings.Contains(name, "=") {
		return false
	}
	for _, f := range flags {
		for _, n := range f.Names() {
			if n != name {
				continue
			}
			df, ok := f.(cli.DocGenerationFlag)
			return ok && df.TakesValue()
		}
	}
	return false
}
