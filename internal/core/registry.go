package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
)

// Index holds loaded commands. Labels and aliases share one lookup space; a
// later registration takes over a token an earlier one used. Losing its label
// removes the earlier command with all of its aliases.
type Index struct {
	mu     sync.RWMutex
	lookup map[string]*Command // labels and aliases
	labels map[string]*Command
	logger *log.Logger
}

// NewIndex returns an empty index.
func NewIndex(logger *log.Logger) *Index {
	if logger == nil {
		logger = log.Default()
	}
	return &Index{
		lookup: make(map[string]*Command),
		labels: make(map[string]*Command),
		logger: logger.WithPrefix("commands"),
	}
}

// Register adds cmd under its label and every alias.
func (x *Index) Register(cmd *Command) error {
	if cmd == nil || cmd.Label == "" {
		return ErrEmptyLabel
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if prev, ok := x.lookup[cmd.Label]; ok && prev != cmd {
		x.logger.Warn("command label taken over", "token", cmd.Label, "previous", prev.Label, "module", cmd.Module)
		x.drop(prev, cmd.Label)
	}
	x.lookup[cmd.Label] = cmd
	x.labels[cmd.Label] = cmd

	for _, alias := range cmd.Aliases {
		if alias == "" || alias == cmd.Label {
			continue
		}
		if prev, ok := x.lookup[alias]; ok && prev != cmd {
			x.logger.Warn("alias taken over", "token", alias, "previous", prev.Label, "command", cmd.Label)
			x.drop(prev, alias)
		}
		x.lookup[alias] = cmd
	}
	return nil
}

// drop removes prev entirely when token was its label. A command that lost its
// label is neither listed nor reachable through its remaining aliases.
func (x *Index) drop(prev *Command, token string) {
	if prev.Label != token {
		return
	}
	if x.labels[token] == prev {
		delete(x.labels, token)
	}
	for tok, cmd := range x.lookup {
		if cmd == prev {
			delete(x.lookup, tok)
		}
	}
}

// Resolve returns the command registered under token (label or alias).
func (x *Index) Resolve(token string) (*Command, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	cmd, ok := x.lookup[token]
	return cmd, ok
}

// Commands returns every reachable command, sorted by label.
func (x *Index) Commands() []*Command {
	x.mu.RLock()
	defer x.mu.RUnlock()
	list := make([]*Command, 0, len(x.labels))
	for _, cmd := range x.labels {
		list = append(list, cmd)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Label < list[j].Label })
	return list
}

// Count returns the number of commands reachable by label.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.labels)
}

// ModuleCount returns how many commands module contributed.
func (x *Index) ModuleCount(module string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := 0
	for _, cmd := range x.labels {
		if cmd.Module == module {
			n++
		}
	}
	return n
}

// Clear removes every label and alias.
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	clear(x.lookup)
	clear(x.labels)
}

// String implements fmt.Stringer for debug logging.
func (x *Index) String() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return fmt.Sprintf("Index{commands: %d, tokens: %d}", len(x.labels), len(x.lookup))
}
