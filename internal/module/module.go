// Package module discovers module descriptors and loads the commands and
// events of the matching compiled-in providers.
package module

import (
	"bytes"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/settings"
)

// DescriptorFile marks a directory as a module.
const DescriptorFile = "module.yaml"

// Configuration is the settings schema of a module with default values.
type Configuration struct {
	Global map[string]any `yaml:"global"`
	Guild  map[string]any `yaml:"guild"`
}

// Descriptor is the decoded module.yaml.
type Descriptor struct {
	Name          string        `yaml:"name"`
	Identifier    string        `yaml:"identifier"`
	Version       string        `yaml:"version"`
	Description   string        `yaml:"description"`
	Dependencies  []string      `yaml:"dependencies"`
	BotSetup      bool          `yaml:"bot_setup"`
	GuildSetup    bool          `yaml:"guild_setup"`
	Configuration Configuration `yaml:"configuration"`
}

// ParseDescriptor decodes and validates a descriptor.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var d Descriptor
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, err
	}
	d.Identifier = strings.TrimSpace(d.Identifier)
	if d.Identifier == "" {
		return nil, fmt.Errorf("identifier is required")
	}
	if strings.ContainsAny(d.Identifier, " \t/") {
		return nil, fmt.Errorf("identifier %q contains whitespace or a slash", d.Identifier)
	}
	if d.Name == "" {
		d.Name = d.Identifier
	}
	return &d, nil
}

// Provider is the code behind a module. Commands and Events build fresh values
// on every call so a reload never shares state with the previous load.
type Provider interface {
	Identifier() string
	Commands() []*core.Command
	Events() []*core.EventHandler
}

// Funcs adapts plain functions to a Provider.
type Funcs struct {
	ID         string
	CommandsFn func() []*core.Command
	EventsFn   func() []*core.EventHandler
}

func (f Funcs) Identifier() string { return f.ID }

func (f Funcs) Commands() []*core.Command {
	if f.CommandsFn == nil {
		return nil
	}
	return f.CommandsFn()
}

func (f Funcs) Events() []*core.EventHandler {
	if f.EventsFn == nil {
		return nil
	}
	return f.EventsFn()
}

// Manifest maps identifiers to the providers compiled into the binary.
type Manifest map[string]Provider

// NewManifest indexes providers by identifier.
func NewManifest(providers ...Provider) (Manifest, error) {
	m := make(Manifest, len(providers))
	for _, p := range providers {
		id := p.Identifier()
		if _, ok := m[id]; ok {
			return nil, fmt.Errorf("%w: provider %q", ErrDuplicateModule, id)
		}
		m[id] = p
	}
	return m, nil
}

// Identifiers returns the provider identifiers, sorted.
func (m Manifest) Identifiers() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Module is a discovered module and its runtime state.
type Module struct {
	Descriptor
	Source   string
	Path     string
	Provider Provider

	mu           sync.Mutex
	wasSetup     bool
	guildSetups  map[string]struct{}
	commandCount int
	eventCount   int
}

func newModule(d Descriptor, source, path string, p Provider) *Module {
	return &Module{
		Descriptor:  d,
		Source:      source,
		Path:        path,
		Provider:    p,
		wasSetup:    !d.BotSetup,
		guildSetups: make(map[string]struct{}),
	}
}

// ID returns the module identifier.
func (m *Module) ID() string { return m.Identifier }

// Location is source and path joined for display.
func (m *Module) Location() string {
	if m.Path == "." {
		return m.Source
	}
	return m.Source + "/" + m.Path
}

// Schema returns the global settings schema.
func (m *Module) Schema() settings.Schema {
	return settings.Schema{Module: m.Identifier, Defaults: maps.Clone(m.Configuration.Global)}
}

// GuildDefaults returns the guild defaults keyed for a guild record.
func (m *Module) GuildDefaults() map[string]any {
	out := make(map[string]any, len(m.Configuration.Guild))
	for k, v := range m.Configuration.Guild {
		out[settings.GuildKey(m.Identifier, k)] = v
	}
	return out
}

// HasGuildSetting reports whether key is a declared guild setting.
func (m *Module) HasGuildSetting(key string) bool {
	_, ok := m.Configuration.Guild[key]
	return ok
}

// Counts returns how many commands and events the last load registered.
func (m *Module) Counts() (commands, events int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commandCount, m.eventCount
}

func (m *Module) setCounts(commands, events int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if commands >= 0 {
		m.commandCount = commands
	}
	if events >= 0 {
		m.eventCount = events
	}
}

// WasSetup reports whether bot setup ran, or is not needed.
func (m *Module) WasSetup() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wasSetup
}

// ExecuteBotSetup marks bot setup done. It returns false when it already was.
func (m *Module) ExecuteBotSetup() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wasSetup {
		return false
	}
	m.wasSetup = true
	return true
}

// GuildSetupDone reports whether guild setup ran for guildID.
func (m *Module) GuildSetupDone(guildID string) bool {
	if !m.GuildSetup {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.guildSetups[guildID]
	return ok
}

// ExecuteGuildSetup marks guild setup done for guildID. It returns false when
// the module needs no guild setup or it already ran.
func (m *Module) ExecuteGuildSetup(guildID string) bool {
	if !m.GuildSetup {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.guildSetups[guildID]; ok {
		return false
	}
	m.guildSetups[guildID] = struct{}{}
	return true
}

// adoptState carries setup progress over from the previous load of the module.
func (m *Module) adoptState(prev *Module) {
	prev.mu.Lock()
	defer prev.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BotSetup && prev.BotSetup && prev.wasSetup {
		m.wasSetup = true
	}
	for id := range prev.guildSetups {
		m.guildSetups[id] = struct{}{}
	}
}
