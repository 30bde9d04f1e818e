package core

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// ErrEmptyLabel is returned when registering a command without a label.
var ErrEmptyLabel = errors.New("command label is empty")

// Permission levels. Higher is more privileged.
const (
	LevelEveryone      = 0
	LevelModerator     = 10
	LevelAdministrator = 50
	LevelServerOwner   = 100
	LevelBotOwner      = 1000
)

var levelNames = []struct {
	name  string
	level int
}{
	{"everyone", LevelEveryone},
	{"moderator", LevelModerator},
	{"administrator", LevelAdministrator},
	{"owner", LevelServerOwner},
	{"botowner", LevelBotOwner},
}

// ParseLevel accepts a level name or a non-negative number.
func ParseLevel(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, ln := range levelNames {
		if s == ln.name {
			return ln.level, true
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// LevelName names a level, falling back to the number.
func LevelName(level int) string {
	for _, ln := range levelNames {
		if ln.level == level {
			return ln.name
		}
	}
	return strconv.Itoa(level)
}

// RunFunc executes a command. args are the raw tokens after the command token;
// parsed holds the values produced by the declared arguments.
type RunFunc func(ctx context.Context, c Client, info *CommandInfo, args []string, parsed Args) error

// Command is a named, invokable action.
type Command struct {
	Label        string
	Aliases      []string
	Description  string
	Usage        string
	Category     string
	DefaultLevel int
	AllowInDM    bool
	Module       string // set by the loader
	Arguments    []Argument
	Run          RunFunc
}

// RequiredLevel returns the guild override for the command when set, the
// command default otherwise.
func (c *Command) RequiredLevel(overrides map[string]int) int {
	if lvl, ok := overrides[c.Label]; ok {
		return lvl
	}
	return c.DefaultLevel
}

// Invoke runs the command through the middlewares.
func (c *Command) Invoke(ctx context.Context, client Client, info *CommandInfo, args []string, parsed Args, mws ...Middleware) error {
	if c.Run == nil {
		return nil
	}
	return Wrap(c, mws...)(ctx, client, info, args, parsed)
}
