// Package fun is a sample module loaded from the modules directory on disk.
package fun

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/settings"
)

// ID is the module identifier.
const ID = "fun"

const rollsVar = "rolls"

// Module provides roll, rolls and echo.
type Module struct {
	// IntN picks a number in [0, n). Defaults to math/rand/v2.
	IntN func(n int) int
}

// New returns the fun module.
func New() *Module { return &Module{IntN: rand.IntN} }

func (*Module) Identifier() string { return ID }

func (*Module) Events() []*core.EventHandler { return nil }

func (m *Module) Commands() []*core.Command {
	return []*core.Command{
		{
			Label:       "roll",
			Aliases:     []string{"dice"},
			Description: "Roll a die",
			Usage:       "roll [sides]",
			Category:    "Fun",
			AllowInDM:   true,
			Arguments:   []core.Argument{core.Int("sides", "sides").Optional()},
			Run:         m.roll,
		},
		{
			Label:       "rolls",
			Description: "How many dice were rolled since start",
			Category:    "Fun",
			AllowInDM:   true,
			Run:         rolls,
		},
		{
			Label:       "echo",
			Aliases:     []string{"say"},
			Description: "Repeat the text",
			Usage:       "echo <text>",
			Category:    "Fun",
			Arguments:   []core.Argument{core.Rest("text", "text")},
			Run:         echo,
		},
	}
}

func (m *Module) roll(ctx context.Context, c core.Client, info *core.CommandInfo, _ []string, parsed core.Args) error {
	sides, given := parsed.Int("sides")
	if !given {
		v, _ := c.Settings().Resolve(ID, "sides", info.Guild.Settings)
		if n, ok := settings.Int(v); ok {
			sides = n
		}
	}
	limit := 100
	if v, ok := info.Guild.Settings[settings.GuildKey(ID, "max_sides")]; ok {
		if n, ok := settings.Int(v); ok {
			limit = n
		}
	}
	if sides < 2 || sides > limit {
		return core.Reply(ctx, c, info, core.Notice{
			Style:       core.StyleError,
			Title:       "Roll",
			Description: fmt.Sprintf("A die needs between 2 and %d sides.", limit),
		})
	}

	result := m.IntN(sides) + 1
	if _, err := c.Variables().Increment(ID, rollsVar, 1); err != nil {
		return err
	}
	return core.Reply(ctx, c, info, core.Notice{
		Content: fmt.Sprintf("🎲 %s rolled **%d** (d%d)", info.Author.Username, result, sides),
	})
}

func rolls(ctx context.Context, c core.Client, info *core.CommandInfo, _ []string, _ core.Args) error {
	n := 0
	if v, ok := c.Variables().Get(ID, rollsVar); ok {
		n, _ = v.(int)
	}
	return core.Reply(ctx, c, info, core.Notice{Content: fmt.Sprintf("%d dice rolled so far.", n)})
}

func echo(ctx context.Context, c core.Client, info *core.CommandInfo, _ []string, parsed core.Args) error {
	text, _ := parsed.String("text")
	return core.Reply(ctx, c, info, core.Notice{Content: text})
}
