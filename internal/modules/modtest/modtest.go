// Package modtest runs module code against a real client backed by temporary
// files and a recording sender.
package modtest

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/charmbracelet/log"

	"github.com/keshon/modbot/internal/bot"
	"github.com/keshon/modbot/internal/config"
	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/module"
)

// OwnerID is the configured bot owner of test clients.
const OwnerID = "owner"

// Sent is one recorded outbound notice.
type Sent struct {
	ChannelID string
	Notice    core.Notice
}

// Recorder is a core.Sender that keeps everything it is asked to do.
type Recorder struct {
	mu      sync.Mutex
	sent    []Sent
	deleted []string
	status  string
}

func (r *Recorder) Send(_ context.Context, channelID string, n core.Notice) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{ChannelID: channelID, Notice: n})
	return fmt.Sprintf("sent-%d", len(r.sent)), nil
}

func (r *Recorder) Delete(_ context.Context, _, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, messageID)
	return nil
}

func (r *Recorder) SetStatus(_ context.Context, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	return nil
}

// Sent returns the notices sent so far.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Last returns the most recent notice.
func (r *Recorder) Last() core.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return core.Notice{}
	}
	return r.sent[len(r.sent)-1].Notice
}

// Status returns the last presence text.
func (r *Recorder) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Reset forgets recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent, r.deleted = nil, nil
}

// Text flattens a notice for substring assertions.
func Text(n core.Notice) string {
	var b strings.Builder
	for _, s := range []string{n.Title, n.Description, n.Content} {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	for _, f := range n.Fields {
		b.WriteString(f.Name + "\n" + f.Value + "\n")
	}
	return b.String()
}

// NewClient builds an initialized client over fsys with the given providers.
func NewClient(t testing.TB, fsys fstest.MapFS, providers ...module.Provider) (*bot.Client, *Recorder) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		DefaultPrefix: "!",
		SettingsPath:  filepath.Join(dir, "settings.json"),
		StorageDriver: "json",
		StorageDSN:    filepath.Join(dir, "datastore.json"),
		OwnerIDs:      []string{OwnerID},
	}
	manifest, err := module.NewManifest(providers...)
	if err != nil {
		t.Fatal(err)
	}
	c, err := bot.New(context.Background(), bot.Options{
		Config:   cfg,
		Manifest: manifest,
		Sources:  []module.Source{{Name: "test", FS: fsys}},
		Logger:   log.New(io.Discard),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })

	rec := &Recorder{}
	c.Attach(rec)
	if _, err := c.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	return c, rec
}

// Run resolves label, parses text against its arguments and invokes it in
// guildID as a user of the given level.
func Run(t testing.TB, c *bot.Client, guildID, userID string, level int, label, text string) error {
	t.Helper()
	ctx := context.Background()
	cmd, ok := c.Commands().Resolve(label)
	if !ok {
		t.Fatalf("command %q not loaded", label)
	}
	guild, err := c.Guild(ctx, guildID)
	if err != nil {
		t.Fatal(err)
	}
	parsed, missing := core.ParseArguments(cmd.Arguments, text)
	if missing != nil {
		t.Fatalf("missing argument %s", missing.Name())
	}
	msg := &core.Message{
		ID:        "msg",
		GuildID:   guildID,
		ChannelID: "chan",
		Author:    core.User{ID: userID, Username: userID},
		Content:   label + " " + text,
	}
	info := core.NewCommandInfo(msg, guild)
	info.Level = level
	return cmd.Invoke(ctx, c, info, strings.Fields(text), parsed)
}
