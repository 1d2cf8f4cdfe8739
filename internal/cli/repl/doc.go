// Package repl implements the interactive kms-cli shell.
//
// Each input line is split into arguments and handed to an Executor, which
// runs it through the same command tree as single-command mode. Fatal
// errors end the loop; every other failure is printed and the shell
// continues. History is kept in ~/.kms-cli/history.
package repl
