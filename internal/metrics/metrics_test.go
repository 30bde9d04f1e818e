package metrics

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/keshon/modbot/internal/core"
)

func TestObserveDispatch(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveDispatch("invoked")
	m.ObserveDispatch("invoked")
	m.ObserveDispatch("denied")

	if got := testutil.ToFloat64(m.Dispatches.WithLabelValues("invoked")); got != 2 {
		t.Errorf("invoked = %v", got)
	}
	if got := testutil.CollectAndCount(m.Dispatches); got != 2 {
		t.Errorf("label combinations = %d", got)
	}
}

func TestMiddleware(t *testing.T) {
	m := New(prometheus.NewRegistry())
	fail := errors.New("boom")
	cmd := &core.Command{Label: "roll", Module: "fun", Run: func(context.Context, core.Client, *core.CommandInfo, []string, core.Args) error {
		return fail
	}}

	info := &core.CommandInfo{}
	if err := cmd.Invoke(context.Background(), nil, info, nil, nil, m.Middleware()); !errors.Is(err, fail) {
		t.Fatalf("err = %v", err)
	}

	expected := `
		# HELP modbot_command_errors_total Command invocations that returned an error.
		# TYPE modbot_command_errors_total counter
		modbot_command_errors_total{command="roll",module="fun"} 1
	`
	if err := testutil.CollectAndCompare(m.CommandErrors, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
	if got := testutil.ToFloat64(m.Commands.WithLabelValues("roll", "fun")); got != 1 {
		t.Errorf("invocations = %v", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveDispatch("x")
	m.ObserveNotice()
	m.ObserveLoad(1, 2, 3)

	called := false
	cmd := &core.Command{Label: "x", Run: func(context.Context, core.Client, *core.CommandInfo, []string, core.Args) error {
		called = true
		return nil
	}}
	if err := cmd.Invoke(context.Background(), nil, &core.CommandInfo{}, nil, nil, m.Middleware()); err != nil || !called {
		t.Errorf("nil middleware: err=%v called=%v", err, called)
	}
}

func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveLoad(3, 10, 4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{"modbot_modules_loaded 3", "modbot_commands_loaded 10"} {
		if !strings.Contains(body, want) {
			t.Errorf("body lacks %q", want)
		}
	}
}
