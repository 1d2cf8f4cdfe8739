package command

import (
	"errors"

	"github.com/urfave/cli/v2"
)

// errUsage marks a command invoked with the wrong number of arguments.
var errUsage = errors.New("invalid arguments")

// reportedError is a failure whose diagnostic has already been printed.
// Its message is empty so that nothing prints it twice.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return "" }

// ExitCode implements cli.ExitCoder.
func (e *reportedError) ExitCode() int { return 1 }

func (e *reportedError) Unwrap() error { return e.err }

// ExitCode maps an error returned by the app to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return 1
}
