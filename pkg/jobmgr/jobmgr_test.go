package jobmgr

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func newManager(ctx context.Context) *Manager {
	return NewManager(ctx, log.New(io.Discard))
}

func blocking(started chan<- struct{}) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
}

func TestStartStop(t *testing.T) {
	m := newManager(context.Background())
	started := make(chan struct{})
	if err := m.Start("watch", blocking(started)); err != nil {
		t.Fatal(err)
	}
	<-started

	if err := m.Start("watch", blocking(make(chan struct{}))); !errors.Is(err, ErrJobRunning) {
		t.Errorf("duplicate start err = %v", err)
	}
	if got := m.Status(); got != "Running jobs: watch" {
		t.Errorf("Status = %q", got)
	}
	if err := m.Stop("watch"); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop("watch"); !errors.Is(err, ErrJobNotRunning) {
		t.Errorf("second stop err = %v", err)
	}
	if len(m.List()) != 0 {
		t.Errorf("List = %v", m.List())
	}
}

func TestJobRemovedWhenDone(t *testing.T) {
	m := newManager(context.Background())
	done := make(chan struct{})
	m.Start("once", func(context.Context) error {
		defer close(done)
		return nil
	})
	<-done

	deadline := time.Now().Add(2 * time.Second)
	for len(m.List()) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("job not removed")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestShutdownFollowsParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := newManager(ctx)
	a, b := make(chan struct{}), make(chan struct{})
	m.Start("a", blocking(a))
	m.Start("b", blocking(b))
	<-a
	<-b

	cancel()
	finished := make(chan struct{})
	go func() {
		m.Shutdown()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return")
	}
}
