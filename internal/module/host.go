package module

import (
	"context"

	"github.com/keshon/modbot/internal/core"
)

// Host is the client as seen by module code that manages modules themselves:
// listing, reloading and changing global settings. Commands get it by
// asserting their core.Client.
type Host interface {
	core.Client
	Modules() []*Module
	Module(id string) (*Module, bool)
	Reload(ctx context.Context) (Stats, error)
	SetGlobal(ctx context.Context, moduleID, key string, value any) error
	IsOwner(userID string) bool
}
