package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultPrompt is printed before each line.
const DefaultPrompt = "kms$ "

// Executor runs one parsed shell line.
type Executor func(ctx context.Context, args []string) error

// Option configures a REPL.
type Option func(*REPL)

// WithInput sets the line source.
func WithInput(r io.Reader) Option {
	return func(s *REPL) { s.input = r }
}

// WithOutput sets where prompts and diagnostics go.
func WithOutput(w io.Writer) Option {
	return func(s *REPL) { s.output = w }
}

// WithPrompt overrides DefaultPrompt.
func WithPrompt(p string) Option {
	return func(s *REPL) { s.prompt = p }
}

// WithHistory sets the history store.
func WithHistory(h *History) Option {
	return func(s *REPL) { s.history = h }
}

// WithCommands sets the command paths offered by completion.
func WithCommands(cmds []string) Option {
	return func(s *REPL) { s.completer = NewCompleter(cmds) }
}

// WithFatal sets the predicate for errors that end the shell.
func WithFatal(fn func(error) bool) Option {
	return func(s *REPL) { s.isFatal = fn }
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	exec      Executor
	input     io.Reader
	output    io.Writer
	prompt    string
	completer *Completer
	history   *History
	isFatal   func(error) bool
}

// New creates a new REPL around exec.
func New(exec Executor, opts ...Option) *REPL {
	r := &REPL{
		exec:      exec,
		input:     os.Stdin,
		output:    os.Stdout,
		prompt:    DefaultPrompt,
		completer: NewCompleter(nil),
		history:   NewHistory(""),
		isFatal:   func(error) bool { return false },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// History returns the shell history.
func (r *REPL) History() *History {
	return r.history
}

// Run reads lines until EOF, exit or quit, or a fatal error. The fatal
// error is returned.
func (r *REPL) Run(ctx context.Context) error {
	if err := r.history.Load(); err != nil {
		fmt.Fprintf(r.output, "Error: load history: %v\n", err)
	}

	reader := bufio.NewReader(r.input)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(r.output, r.prompt)

		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		eof := err == io.EOF

		line = strings.TrimSpace(line)
		if line == "" {
			if eof {
				fmt.Fprintln(r.output)
				return nil
			}
			continue
		}

		r.history.Add(line)

		if line == "exit" || line == "quit" {
			return nil
		}

		if err := r.execute(ctx, line); err != nil {
			return err
		}
		if eof {
			return nil
		}
	}
}

func (r *REPL) execute(ctx context.Context, line string) error {
	if strings.HasSuffix(line, "?") {
		for _, s := range r.completer.Complete(strings.TrimSuffix(line, "?")) {
			fmt.Fprintln(r.output, s)
		}
		return nil
	}

	args, err := SplitLine(line)
	if err != nil {
		fmt.Fprintf(r.output, "Error: %v\n", err)
		return nil
	}

	err = r.exec(ctx, args)
	if err == nil {
		return nil
	}
	if r.isFatal(err) {
		return err
	}
	if msg := err.Error(); msg != "" {
		fmt.Fprintf(r.output, "Error: %s\n", msg)
	}
	return nil
}
