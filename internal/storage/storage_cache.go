package storage

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedStore keeps recently used guild records in memory. Reads return copies,
// so callers can mutate freely and persist with Update.
type CachedStore struct {
	next  GuildStore
	cache *cache.Cache
}

// NewCachedStore wraps next with a TTL cache.
func NewCachedStore(next GuildStore, ttl time.Duration) *CachedStore {
	return &CachedStore{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (s *CachedStore) GetOrCreate(ctx context.Context, guildID string) (*GuildSettings, error) {
	if v, ok := s.cache.Get(guildID); ok {
		return v.(*GuildSettings).Clone(), nil
	}
	g, err := s.next.GetOrCreate(ctx, guildID)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(guildID, g.Clone())
	return g, nil
}

func (s *CachedStore) Update(ctx context.Context, g *GuildSettings) error {
	if g == nil {
		return s.next.Update(ctx, g)
	}
	if err := s.next.Update(ctx, g); err != nil {
		s.cache.Delete(g.GuildID)
		return err
	}
	s.cache.SetDefault(g.GuildID, g.Clone())
	return nil
}

// Invalidate drops every cached record.
func (s *CachedStore) Invalidate() {
	s.cache.Flush()
}

func (s *CachedStore) Close() error {
	s.cache.Flush()
	return s.next.Close()
}
