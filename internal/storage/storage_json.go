package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/keshon/modbot/internal/datastore"
)

// JSONStore keeps guild records in a datastore file keyed by guild ID.
type JSONStore struct {
	ds       *datastore.DataStore
	template Template
	logger   *log.Logger
	mu       sync.Mutex // serializes get-or-create
}

// NewJSONStore opens path with the datastore defaults (periodic auto-save).
func NewJSONStore(path string, template Template, logger *log.Logger) (*JSONStore, error) {
	cfg := datastore.DefaultConfig(path)
	cfg.Logger = logger
	ds, err := datastore.NewWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("open guild datastore: %w", err)
	}
	return &JSONStore{ds: ds, template: template, logger: logger}, nil
}

func (s *JSONStore) GetOrCreate(_ context.Context, guildID string) (*GuildSettings, error) {
	if guildID == "" {
		return nil, errors.New("guild id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var record GuildSettings
	ok, err := s.ds.GetInto(guildID, &record)
	if err != nil {
		return nil, fmt.Errorf("decode guild %s: %w", guildID, err)
	}
	if !ok {
		created := s.template(guildID)
		created.normalize()
		s.ds.Add(guildID, created.Clone())
		s.logger.Debug("created guild record", "guild", guildID)
		return created, nil
	}

	record.GuildID = guildID
	record.normalize()
	return &record, nil
}

func (s *JSONStore) Update(_ context.Context, g *GuildSettings) error {
	if g == nil || g.GuildID == "" {
		return errors.New("guild id is required")
	}
	s.ds.Add(g.GuildID, g.Clone())
	return s.ds.SaveToFile()
}

func (s *JSONStore) Close() error {
	return s.ds.Close()
}
