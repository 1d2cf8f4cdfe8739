package repl

import (
	"sort"
	"strings"
)

// Completer provides prefix completion over command paths.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer for the given command paths
// (e.g. "key create"). Shell built-ins are always included.
func NewCompleter(commands []string) *Completer {
	seen := map[string]bool{}
	var all []string
	for _, c := range append(append([]string{}, commands...), "help", "exit", "quit") {
		if !seen[c] {
			seen[c] = true
			all = append(all, c)
		}
	}
	sort.Strings(all)
	return &Completer{commands: all}
}

// Complete returns completion suggestions for the given prefix.
func (c *Completer) Complete(prefix string) []string {
	prefix = strings.Join(strings.Fields(prefix), " ")
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}
