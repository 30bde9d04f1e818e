package settings

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
)

func testLogger() *log.Logger { return log.New(io.Discard) }

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var schemas = []Schema{
	{Module: "base", Defaults: map[string]any{"status": "online", "color": 7}},
	{Module: "fun", Defaults: map[string]any{"sides": 6}},
	{Module: "empty"},
}

func TestEnsureDefaultsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := openStore(t, path)

	if err := s.EnsureDefaults(schemas); err != nil {
		t.Fatalf("first EnsureDefaults: %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureDefaults(schemas); err != nil {
		t.Fatalf("second EnsureDefaults: %v", err)
	}
	second, _ := os.ReadFile(path)
	if string(first) != string(second) {
		t.Fatalf("snapshot changed:\n%s\n---\n%s", first, second)
	}

	// a fresh process sees the same bytes too
	s.Close()
	again := openStore(t, path)
	if err := again.EnsureDefaults(schemas); err != nil {
		t.Fatal(err)
	}
	third, _ := os.ReadFile(path)
	if string(first) != string(third) {
		t.Fatalf("snapshot changed after reopen:\n%s\n---\n%s", first, third)
	}
}

func TestEnsureDefaultsKeepsPersistedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"base":{"status":"busy"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	s := openStore(t, path)
	if err := s.EnsureDefaults(schemas); err != nil {
		t.Fatal(err)
	}

	effective := NewModuleSettings()
	if err := s.LoadEffective(schemas, effective); err != nil {
		t.Fatal(err)
	}
	if got := effective.String("base", "status", ""); got != "busy" {
		t.Errorf("status = %q, want busy", got)
	}
	if _, ok := effective.Get("base", "color"); !ok {
		t.Error("missing default color")
	}
	if effective.Len() != 2 {
		t.Errorf("Len = %d, want 2 (modules without settings are skipped)", effective.Len())
	}
}

func TestLoadEffectiveWithoutSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := openStore(t, path)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	effective := NewModuleSettings()
	if err := s.LoadEffective(schemas, effective); err != nil {
		t.Fatalf("LoadEffective should fail soft: %v", err)
	}
	if v, _ := effective.Get("fun", "sides"); v != 6 {
		t.Errorf("sides = %v, want default 6", v)
	}
}

func TestStoreSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := openStore(t, path)
	effective := NewModuleSettings()

	if err := s.Set("fun", "sides", 20, effective); err != nil {
		t.Fatal(err)
	}
	if v, _ := effective.Get("fun", "sides"); v != 20 {
		t.Errorf("in-memory sides = %v", v)
	}

	s.Close()
	reopened := openStore(t, path)
	if err := reopened.LoadEffective(schemas, effective); err != nil {
		t.Fatal(err)
	}
	if v, _ := effective.Get("fun", "sides"); v != float64(20) {
		t.Errorf("persisted sides = %v (%T)", v, v)
	}
}

func TestResolvePrecedence(t *testing.T) {
	defaults := Snapshot{"m": {"a": "default", "b": "default", "c": "default"}}
	persisted := Snapshot{"m": {"a": "persisted", "b": "persisted"}}
	guild := map[string]any{"m_a": "guild"}

	tests := []struct {
		key  string
		want any
		ok   bool
	}{
		{"a", "guild", true},
		{"b", "persisted", true},
		{"c", "default", true},
		{"d", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := Resolve("m", tt.key, guild, persisted, defaults)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Resolve(%q) = %v, %v; want %v, %v", tt.key, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestModuleSettingsResolve(t *testing.T) {
	ms := NewModuleSettings()
	ms.Set("m", "k", "global")

	if v, _ := ms.Resolve("m", "k", nil); v != "global" {
		t.Errorf("without override = %v", v)
	}
	if v, _ := ms.Resolve("m", "k", map[string]any{GuildKey("m", "k"): "guild"}); v != "guild" {
		t.Errorf("with override = %v", v)
	}
}

func TestInt(t *testing.T) {
	for _, v := range []any{6, int64(6), float64(6)} {
		if n, ok := Int(v); !ok || n != 6 {
			t.Errorf("Int(%T) = %d, %v", v, n, ok)
		}
	}
	for _, v := range []any{6.5, "6", nil} {
		if _, ok := Int(v); ok {
			t.Errorf("Int(%v) should fail", v)
		}
	}
}

func TestEnsureDefaultsRecreatesDeletedSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := openStore(t, path)
	if err := s.EnsureDefaults(schemas); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	if err := s.EnsureDefaults(schemas); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot not recreated: %v", err)
	}
	effective := NewModuleSettings()
	if err := s.LoadEffective(schemas, effective); err != nil {
		t.Fatal(err)
	}
	if v, _ := effective.Get("fun", "sides"); v != float64(6) {
		t.Errorf("sides = %v (%T), want 6 read back from the file", v, v)
	}
}

func TestEnsureDefaultsKeepsValuesEditedOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := openStore(t, path)
	first := []Schema{{Module: "fun", Defaults: map[string]any{"max_sides": 100}}}
	if err := s.EnsureDefaults(first); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"fun":{"max_sides":6}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	grown := append(first, Schema{Module: "extra", Defaults: map[string]any{"on": true}})
	if err := s.EnsureDefaults(grown); err != nil {
		t.Fatal(err)
	}

	effective := NewModuleSettings()
	if err := s.LoadEffective(grown, effective); err != nil {
		t.Fatal(err)
	}
	if v, _ := effective.Get("fun", "max_sides"); v != float64(6) {
		t.Errorf("max_sides = %v, want the edited 6", v)
	}
	if v, _ := effective.Get("extra", "on"); v != true {
		t.Errorf("extra.on = %v, want default true", v)
	}
}

func TestStoreSetMergesIntoFileOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := openStore(t, path)
	if err := s.EnsureDefaults(schemas); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"base":{"status":"edited"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := s.Set("fun", "sides", 12, nil); err != nil {
		t.Fatal(err)
	}
	effective := NewModuleSettings()
	if err := s.LoadEffective(schemas, effective); err != nil {
		t.Fatal(err)
	}
	if got := effective.String("base", "status", ""); got != "edited" {
		t.Errorf("status = %q, want edited", got)
	}
	if v, _ := effective.Get("fun", "sides"); v != float64(12) {
		t.Errorf("sides = %v, want 12", v)
	}
}
