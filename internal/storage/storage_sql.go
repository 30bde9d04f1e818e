package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	createGuildTable = `CREATE TABLE IF NOT EXISTS guild_settings (
	guild_id   TEXT PRIMARY KEY,
	prefix     TEXT NOT NULL,
	cmd_levels TEXT NOT NULL,
	settings   TEXT NOT NULL
)`
	selectGuild = `SELECT prefix, cmd_levels, settings FROM guild_settings WHERE guild_id = $1`
	insertGuild = `INSERT INTO guild_settings (guild_id, prefix, cmd_levels, settings) VALUES ($1, $2, $3, $4)
ON CONFLICT (guild_id) DO NOTHING`
	upsertGuild = `INSERT INTO guild_settings (guild_id, prefix, cmd_levels, settings) VALUES ($1, $2, $3, $4)
ON CONFLICT (guild_id) DO UPDATE SET prefix = excluded.prefix, cmd_levels = excluded.cmd_levels, settings = excluded.settings`
)

// SQLStore keeps guild records in the guild_settings table. The statements
// are valid for both SQLite and PostgreSQL.
type SQLStore struct {
	db       *sql.DB
	template Template
	logger   *log.Logger
}

// OpenSQL opens the database for driver ("sqlite" or "postgres") and creates
// the table when missing.
func OpenSQL(ctx context.Context, driver, dsn string, template Template, logger *log.Logger) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// a single connection avoids SQLITE_BUSY between writers
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := NewSQLStore(db, template, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database. Call Migrate before first use.
func NewSQLStore(db *sql.DB, template Template, logger *log.Logger) *SQLStore {
	if logger == nil {
		logger = log.Default()
	}
	return &SQLStore{db: db, template: template, logger: logger}
}

// Migrate creates the guild table.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createGuildTable); err != nil {
		return fmt.Errorf("create guild_settings: %w", err)
	}
	return nil
}

func (s *SQLStore) GetOrCreate(ctx context.Context, guildID string) (*GuildSettings, error) {
	if guildID == "" {
		return nil, errors.New("guild id is required")
	}

	var prefix, levels, values string
	err := s.db.QueryRowContext(ctx, selectGuild, guildID).Scan(&prefix, &levels, &values)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		created := s.template(guildID)
		created.normalize()
		if err := s.write(ctx, insertGuild, created); err != nil {
			return nil, err
		}
		s.logger.Debug("created guild record", "guild", guildID)
		return created, nil
	case err != nil:
		return nil, fmt.Errorf("select guild %s: %w", guildID, err)
	}

	record := &GuildSettings{GuildID: guildID, Prefix: prefix}
	if err := json.Unmarshal([]byte(levels), &record.CmdLevels); err != nil {
		return nil, fmt.Errorf("decode cmd_levels of guild %s: %w", guildID, err)
	}
	if err := json.Unmarshal([]byte(values), &record.Settings); err != nil {
		return nil, fmt.Errorf("decode settings of guild %s: %w", guildID, err)
	}
	record.normalize()
	return record, nil
}

func (s *SQLStore) Update(ctx context.Context, g *GuildSettings) error {
	if g == nil || g.GuildID == "" {
		return errors.New("guild id is required")
	}
	return s.write(ctx, upsertGuild, g.Clone())
}

func (s *SQLStore) write(ctx context.Context, query string, g *GuildSettings) error {
	levels, err := json.Marshal(g.CmdLevels)
	if err != nil {
		return fmt.Errorf("encode cmd_levels: %w", err)
	}
	values, err := json.Marshal(g.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, g.GuildID, g.Prefix, string(levels), string(values)); err != nil {
		return fmt.Errorf("write guild %s: %w", g.GuildID, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
