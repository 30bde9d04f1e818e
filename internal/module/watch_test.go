package module

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchCallsBackOnDescriptorChange(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "fun"), 0o755); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dir, 20*time.Millisecond, quiet(), func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		})
	}()

	descriptor := filepath.Join(dir, "fun", DescriptorFile)
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for waiting := true; waiting; {
		select {
		case <-fired:
			waiting = false
		case <-tick.C:
			if err := os.WriteFile(descriptor, []byte("identifier: fun\n"), 0o644); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("no callback after descriptor write")
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

func TestWatchMissingDir(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "absent"), 0, quiet(), func() {})
	if err == nil {
		t.Error("expected error for missing dir")
	}
}
