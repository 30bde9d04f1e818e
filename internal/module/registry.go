package module

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/settings"
)

var (
	// ErrMalformedDescriptor is returned when a module.yaml cannot be decoded.
	ErrMalformedDescriptor = errors.New("malformed module descriptor")
	// ErrUnknownProvider is returned when no compiled-in provider matches a descriptor.
	ErrUnknownProvider = errors.New("no provider for module")
	// ErrDuplicateModule is returned when two descriptors share an identifier.
	ErrDuplicateModule = errors.New("duplicate module identifier")
)

// Owner is the bus owner of every event listener the registry attaches.
const Owner = "registry"

// Source is a tree scanned for module directories.
type Source struct {
	Name string
	FS   fs.FS
}

// DirSource returns a Source for a directory on disk. A missing directory
// yields no modules.
func DirSource(dir string) Source {
	return Source{Name: dir, FS: os.DirFS(dir)}
}

// Stats are the totals of one load.
type Stats struct {
	Modules  int
	Commands int
	Events   int
}

// Options configure a Registry.
type Options struct {
	Manifest Manifest
	Sources  []Source
	Commands *core.Index
	Events   *core.Bus
	Logger   *log.Logger
}

// Registry owns the set of discovered modules.
type Registry struct {
	manifest Manifest
	sources  []Source
	commands *core.Index
	events   *core.Bus
	logger   *log.Logger

	loadMu  sync.Mutex // one load at a time
	mu      sync.RWMutex
	modules []*Module
	byID    map[string]*Module
}

// NewRegistry returns a registry with nothing loaded.
func NewRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	commands := opts.Commands
	if commands == nil {
		commands = core.NewIndex(logger)
	}
	events := opts.Events
	if events == nil {
		events = core.NewBus()
	}
	return &Registry{
		manifest: opts.Manifest,
		sources:  opts.Sources,
		commands: commands,
		events:   events,
		logger:   logger.WithPrefix("registry"),
		byID:     make(map[string]*Module),
	}
}

// Commands returns the command index the registry fills.
func (r *Registry) Commands() *core.Index { return r.commands }

// Events returns the bus the registry attaches listeners to.
func (r *Registry) Events() *core.Bus { return r.events }

// Discover scans every source in order and returns the modules found. Each
// source root is checked first, then its immediate subdirectories in lexical
// order. Discover does not change the registry.
func (r *Registry) Discover() ([]*Module, error) {
	var found []*Module
	seen := make(map[string]*Module)

	for _, src := range r.sources {
		dirs, err := candidateDirs(src.FS)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", src.Name, err)
		}
		for _, dir := range dirs {
			data, err := fs.ReadFile(src.FS, path.Join(dir, DescriptorFile))
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("read %s/%s: %w", src.Name, dir, err)
			}

			d, err := ParseDescriptor(data)
			if err != nil {
				return nil, fmt.Errorf("%w: %s/%s: %v", ErrMalformedDescriptor, src.Name, dir, err)
			}
			p, ok := r.manifest[d.Identifier]
			if !ok {
				return nil, fmt.Errorf("%w %q (%s/%s)", ErrUnknownProvider, d.Identifier, src.Name, dir)
			}
			m := newModule(*d, src.Name, dir, p)
			if prev, ok := seen[d.Identifier]; ok {
				return nil, fmt.Errorf("%w %q (%s, %s)", ErrDuplicateModule, d.Identifier, prev.Location(), m.Location())
			}
			seen[d.Identifier] = m
			found = append(found, m)
		}
	}

	for _, m := range found {
		for _, dep := range m.Dependencies {
			if _, ok := seen[dep]; !ok {
				r.logger.Warn("module dependency not found", "module", m.Identifier, "dependency", dep)
			}
		}
	}
	return found, nil
}

func candidateDirs(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	dirs := []string{"."}
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}

// Load rediscovers modules and registers their commands and events. Loading
// commands clears the index first; loading events detaches every listener the
// registry attached before. Listeners of other owners are left alone. A failed
// discovery leaves the previous load in place.
func (r *Registry) Load(ctx context.Context, client core.Client, loadCommands, loadEvents bool) (Stats, error) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	found, err := r.Discover()
	if err != nil {
		return Stats{}, err
	}
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	r.mu.Lock()
	previous := r.byID
	byID := make(map[string]*Module, len(found))
	for _, m := range found {
		if prev, ok := previous[m.Identifier]; ok {
			m.adoptState(prev)
		}
		byID[m.Identifier] = m
	}
	r.modules = found
	r.byID = byID
	r.mu.Unlock()

	if loadCommands {
		r.commands.Clear()
	}
	if loadEvents {
		if n := r.events.DetachOwner(Owner); n > 0 {
			r.logger.Debug("detached event listeners", "count", n)
		}
	}

	stats := Stats{Modules: len(found)}
	events := make(map[string]int, len(found))
	for _, m := range found {
		if loadCommands {
			r.loadCommands(m)
		}
		if loadEvents {
			events[m.Identifier] = r.loadEvents(m, client)
			stats.Events += events[m.Identifier]
		}
	}
	// a later module may take over an earlier one's label, so counts are
	// taken from the index once every module registered
	if loadCommands {
		stats.Commands = r.commands.Count()
	}

	for _, m := range found {
		cmds, evs := -1, -1
		if loadCommands {
			cmds = r.commands.ModuleCount(m.Identifier)
		}
		if loadEvents {
			evs = events[m.Identifier]
		}
		m.setCounts(cmds, evs)

		c, e := m.Counts()
		r.logger.Info("loaded module", "module", m.Identifier, "version", m.Version, "commands", c, "events", e)
	}

	r.logger.Info("modules loaded", "modules", stats.Modules, "commands", stats.Commands, "events", stats.Events)
	return stats, nil
}

func (r *Registry) loadCommands(m *Module) {
	for _, cmd := range m.Provider.Commands() {
		if cmd == nil {
			continue
		}
		cmd.Module = m.Identifier
		if err := r.commands.Register(cmd); err != nil {
			r.logger.Warn("skipping command", "module", m.Identifier, "err", err)
		}
	}
}

func (r *Registry) loadEvents(m *Module, client core.Client) int {
	n := 0
	for _, h := range m.Provider.Events() {
		if h == nil || h.Listener == nil || h.Event == "" {
			r.logger.Warn("skipping incomplete event handler", "module", m.Identifier)
			continue
		}
		if h.Type == "" {
			h.Type = core.On
		}
		h.Module = m.Identifier
		r.events.Register(Owner, client, h)
		n++
	}
	return n
}

// Modules returns the loaded modules in discovery order.
func (r *Registry) Modules() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Module, len(r.modules))
	copy(out, r.modules)
	return out
}

// Module returns a loaded module by identifier.
func (r *Registry) Module(id string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	return m, ok
}

// Schemas returns the global settings schema of every loaded module.
func (r *Registry) Schemas() []settings.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]settings.Schema, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m.Schema())
	}
	return out
}

// GuildDefaults merges the guild defaults of every loaded module.
func (r *Registry) GuildDefaults() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any)
	for _, m := range r.modules {
		for k, v := range m.GuildDefaults() {
			out[k] = v
		}
	}
	return out
}
