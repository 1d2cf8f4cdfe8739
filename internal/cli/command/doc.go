// Package command builds the kms-cli command tree on urfave/cli/v2.
//
// The tree is generated from the dispatch registry: every registered
// command becomes a leaf (grouped under ns, key and secret where its name
// has two words) whose action hands the parsed arguments to the shared
// Dispatcher. Without a command, or with "shell", the app starts the
// interactive shell, which runs each line through a fresh copy of the same
// tree.
package command
