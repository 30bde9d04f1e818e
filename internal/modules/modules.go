// Package modules lists the modules compiled into the binary.
package modules

import (
	"embed"

	"github.com/charmbracelet/log"

	"github.com/keshon/modbot/internal/dispatch"
	"github.com/keshon/modbot/internal/module"
	"github.com/keshon/modbot/internal/modules/base"
	"github.com/keshon/modbot/internal/modules/configure"
	"github.com/keshon/modbot/internal/modules/fun"
	"github.com/keshon/modbot/internal/modules/permissions"
)

// descriptors of the modules that are always present.
//
//go:embed */module.yaml
var descriptors embed.FS

// Builtin is the source scanned before the modules directory.
func Builtin() module.Source {
	return module.Source{Name: "builtin", FS: descriptors}
}

// Sources returns the built-in source followed by dir on disk.
func Sources(dir string) []module.Source {
	sources := []module.Source{Builtin()}
	if dir != "" {
		sources = append(sources, module.DirSource(dir))
	}
	return sources
}

// Manifest returns every provider. d may be nil when no messages are routed.
func Manifest(d *dispatch.Dispatcher, logger *log.Logger) (module.Manifest, error) {
	return module.NewManifest(
		base.New(d, logger),
		configure.New(),
		permissions.New(),
		fun.New(),
	)
}
