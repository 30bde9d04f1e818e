package core

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// Middleware wraps a RunFunc (logging, metrics).
type Middleware func(cmd *Command, next RunFunc) RunFunc

// Wrap applies middlewares to cmd.Run; the first in the list is the outermost.
func Wrap(cmd *Command, mws ...Middleware) RunFunc {
	run := cmd.Run
	for i := len(mws) - 1; i >= 0; i-- {
		run = mws[i](cmd, run)
	}
	return run
}

// WithCommandLogger logs every invocation after it finished.
func WithCommandLogger(logger *log.Logger) Middleware {
	return func(cmd *Command, next RunFunc) RunFunc {
		return func(ctx context.Context, c Client, info *CommandInfo, args []string, parsed Args) error {
			start := time.Now()
			err := next(ctx, c, info, args, parsed)

			kv := []any{
				"command", cmd.Label,
				"guild", info.GuildID,
				"channel", info.ChannelID,
				"user", info.Author.ID,
				"took", time.Since(start),
			}
			if err != nil {
				logger.Warn("command failed", append(kv, "err", err)...)
			} else {
				logger.Info("command executed", kv...)
			}
			return err
		}
	}
}
