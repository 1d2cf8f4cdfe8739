package command

import (
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kms-cli/internal/cli/dispatch"
	"github.com/yndnr/kms-cli/internal/cli/output"
	"github.com/yndnr/kms-cli/internal/cli/repl"
	"github.com/yndnr/kms-cli/internal/infra/buildinfo"
)

// AppName is the program name.
const AppName = "kms-cli"

// Options wires the app to its environment.
type Options struct {
	// Connector reaches KMS servers. Nil synthesizes rpcstub stubs from the
	// loaded interface definition.
	Connector dispatch.Connector
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
	// HistoryFile persists shell history. Empty keeps it in memory.
	HistoryFile string
}

// App creates the CLI application bound to the process streams.
func App() *cli.App {
	return NewApp(Options{
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		HistoryFile: repl.DefaultHistoryFile(),
	})
}

// NewApp creates the CLI application.
func NewApp(opts Options) *cli.App {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	commands := commandTree()
	commands = append(commands, &cli.Command{
		Name:   "shell",
		Usage:  "Start the interactive shell",
		Action: runShell,
	})

	return &cli.App{
		Name:      AppName,
		Usage:     "Command-line client for a remote key management service",
		Version:   buildinfo.String(),
		Flags:     globalFlags(),
		Commands:  commands,
		Writer:    opts.Stdout,
		ErrWriter: opts.Stderr,
		Reader:    opts.Stdin,
		Metadata:  map[string]any{optionsKey: opts},
		// Exit codes are decided by the caller once After has run.
		ExitErrHandler: func(*cli.Context, error) {},
		Before:         before,
		After:          after,
		Action:         rootAction,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "proto",
			Usage:   "interface definition (.proto or protoset); default is the built-in KMS service",
			EnvVars: []string{"KMS_CLI_PROTO"},
		},
		&cli.StringFlag{
			Name:  "service",
			Usage: "service name within the interface definition",
			Value: "Kms",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "list output format: table, json, yaml",
			Value: string(output.FormatTable),
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "deadline for each remote call",
			Value: dispatch.DefaultTimeout,
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable verbose output",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "log format: auto, text, json",
			Value: "auto",
		},
		&cli.StringFlag{
			Name:  "metrics-textfile",
			Usage: "write Prometheus metrics to this file on exit",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Proto       string
	Service     string
	Output      string
	Timeout     time.Duration
	Verbose     bool
	LogFormat   string
	MetricsFile string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Proto:       c.String("proto"),
		Service:     c.String("service"),
		Output:      c.String("output"),
		Timeout:     c.Duration("timeout"),
		Verbose:     c.Bool("verbose"),
		LogFormat:   c.String("log-format"),
		MetricsFile: c.String("metrics-textfile"),
	}
}

// rootAction starts the shell when no command is given.
func rootAction(c *cli.Context) error {
	if c.NArg() > 0 {
		return unknownCommand(c)
	}
	return runShell(c)
}

func unknownCommand(c *cli.Context) error {
	printUsageError(c, "unknown command '%s'", c.Args().First())
	return &reportedError{err: errUsage}
}
