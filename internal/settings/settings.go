// Package settings holds the bot-wide module settings: declared defaults, the
// persisted snapshot file and the effective in-memory view built from both.
//
// Precedence for a single value is guild override > persisted global > module default.
package settings

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/keshon/modbot/internal/datastore"
)

// Schema is the global settings a module declares, with their default values.
type Schema struct {
	Module   string
	Defaults map[string]any
}

// Snapshot maps module identifier to setting key to value.
type Snapshot map[string]map[string]any

// GuildKey is the key a module setting is stored under in a guild record.
func GuildKey(moduleID, key string) string {
	return moduleID + "_" + key
}

// Resolve looks a setting up through the three tiers. guild is keyed by
// GuildKey; persisted and defaults by module then key. Any tier may be nil.
func Resolve(moduleID, key string, guild map[string]any, persisted, defaults Snapshot) (any, bool) {
	if v, ok := guild[GuildKey(moduleID, key)]; ok {
		return v, true
	}
	if v, ok := persisted[moduleID][key]; ok {
		return v, true
	}
	if v, ok := defaults[moduleID][key]; ok {
		return v, true
	}
	return nil, false
}

// Int converts a setting value to int. Numbers read back from JSON are float64.
func Int(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// ModuleSettings is the effective global settings view. Safe for concurrent use.
type ModuleSettings struct {
	mu     sync.RWMutex
	values Snapshot
}

// NewModuleSettings returns an empty view.
func NewModuleSettings() *ModuleSettings {
	return &ModuleSettings{values: make(Snapshot)}
}

// Get returns the value of key for moduleID.
func (s *ModuleSettings) Get(moduleID, key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[moduleID][key]
	return v, ok
}

// String returns the value as a string, or def when absent or not a string.
func (s *ModuleSettings) String(moduleID, key, def string) string {
	if v, ok := s.Get(moduleID, key); ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return def
}

// Set stores a value in memory only.
func (s *ModuleSettings) Set(moduleID, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values[moduleID] == nil {
		s.values[moduleID] = make(map[string]any)
	}
	s.values[moduleID][key] = value
}

// Module returns a copy of every key of moduleID.
func (s *ModuleSettings) Module(moduleID string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values[moduleID])
}

// Modules returns the module identifiers present, sorted.
func (s *ModuleSettings) Modules() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.values))
	for id := range s.values {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of module entries.
func (s *ModuleSettings) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Resolve applies the guild override on top of the effective value.
func (s *ModuleSettings) Resolve(moduleID, key string, guild map[string]any) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Resolve(moduleID, key, guild, s.values, nil)
}

func (s *ModuleSettings) replace(values Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = values
}

// Store is the persisted global settings snapshot.
type Store struct {
	ds     *datastore.DataStore
	logger *log.Logger
}

// Open opens the snapshot file, creating it with an empty object when absent.
// Failing to create or parse the file is fatal for startup.
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}
	ds, err := datastore.NewWithConfig(&datastore.Config{
		FilePath: path,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open settings snapshot: %w", err)
	}
	return &Store{ds: ds, logger: logger.WithPrefix("settings")}, nil
}

// Path returns the snapshot file path.
func (s *Store) Path() string { return s.ds.Path() }

// Close flushes the snapshot.
func (s *Store) Close() error { return s.ds.Close() }

// EnsureDefaults writes every declared default that the snapshot on disk
// lacks. Present values are never overwritten, so repeated runs leave the file
// unchanged. A snapshot deleted since Open is recreated.
func (s *Store) EnsureDefaults(schemas []Schema) error {
	if err := s.reread(); err != nil {
		return err
	}
	for _, schema := range schemas {
		if len(schema.Defaults) == 0 {
			continue
		}
		entry, err := s.entry(schema.Module)
		if err != nil {
			return err
		}
		if entry == nil {
			entry = make(map[string]any, len(schema.Defaults))
		}
		added := 0
		for key, value := range schema.Defaults {
			if _, ok := entry[key]; ok {
				continue
			}
			entry[key] = value
			added++
		}
		if added > 0 {
			s.logger.Debug("added setting defaults", "module", schema.Module, "count", added)
		}
		s.ds.Add(schema.Module, entry)
	}
	if err := s.ds.SaveToFile(); err != nil {
		return fmt.Errorf("write settings snapshot: %w", err)
	}
	return nil
}

// LoadEffective builds the effective view for every declared key: the persisted
// value when present, the declared default otherwise. A snapshot that vanished
// from disk is logged and the defaults are used.
func (s *Store) LoadEffective(schemas []Schema, into *ModuleSettings) error {
	persisted := make(Snapshot)

	if _, err := os.Stat(s.ds.Path()); errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("could not load settings file, using defaults", "file", s.ds.Path())
	} else {
		if err := s.ds.Reload(); err != nil {
			return fmt.Errorf("reload settings snapshot: %w", err)
		}
		for _, schema := range schemas {
			entry, err := s.entry(schema.Module)
			if err != nil {
				return err
			}
			if entry != nil {
				persisted[schema.Module] = entry
			}
		}
	}

	values := make(Snapshot, len(schemas))
	for _, schema := range schemas {
		for key, def := range schema.Defaults {
			if values[schema.Module] == nil {
				values[schema.Module] = make(map[string]any, len(schema.Defaults))
			}
			if v, ok := persisted[schema.Module][key]; ok {
				values[schema.Module][key] = v
			} else {
				values[schema.Module][key] = def
			}
		}
	}
	into.replace(values)
	return nil
}

// Set persists one global value and mirrors it into the effective view.
func (s *Store) Set(moduleID, key string, value any, into *ModuleSettings) error {
	if err := s.reread(); err != nil {
		return err
	}
	entry, err := s.entry(moduleID)
	if err != nil {
		return err
	}
	if entry == nil {
		entry = make(map[string]any)
	}
	entry[key] = value
	s.ds.Add(moduleID, entry)
	if err := s.ds.SaveToFile(); err != nil {
		return fmt.Errorf("write settings snapshot: %w", err)
	}
	if into != nil {
		into.Set(moduleID, key, value)
	}
	return nil
}

// reread loads the snapshot so writes merge into what is on disk. A missing
// file is recreated empty.
func (s *Store) reread() error {
	if err := s.ds.Sync(); err != nil {
		return fmt.Errorf("read settings snapshot: %w", err)
	}
	return nil
}

func (s *Store) entry(moduleID string) (map[string]any, error) {
	var entry map[string]any
	ok, err := s.ds.GetInto(moduleID, &entry)
	if err != nil {
		return nil, fmt.Errorf("settings for module %q: %w", moduleID, err)
	}
	if !ok {
		return nil, nil
	}
	return entry, nil
}
