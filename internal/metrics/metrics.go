// Package metrics exposes dispatcher and module counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keshon/modbot/internal/core"
)

const namespace = "modbot"

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	Dispatches       *prometheus.CounterVec
	Commands         *prometheus.CounterVec
	CommandErrors    *prometheus.CounterVec
	CommandDuration  *prometheus.HistogramVec
	ModulesLoaded    prometheus.Gauge
	CommandsLoaded   prometheus.Gauge
	ListenersLoaded  prometheus.Gauge
	NoticesScheduled prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Dispatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Inbound messages by dispatch outcome.",
		}, []string{"outcome"}),
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_invocations_total",
			Help:      "Command invocations.",
		}, []string{"command", "module"}),
		CommandErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_errors_total",
			Help:      "Command invocations that returned an error.",
		}, []string{"command", "module"}),
		CommandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command run time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		ModulesLoaded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "modules_loaded",
			Help:      "Modules registered by the last load.",
		}),
		CommandsLoaded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "commands_loaded",
			Help:      "Commands registered by the last load.",
		}),
		ListenersLoaded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_listeners_loaded",
			Help:      "Event listeners registered by the last load.",
		}),
		NoticesScheduled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ephemeral_notices_total",
			Help:      "Notices scheduled for deletion.",
		}),
		gatherer: reg,
	}
}

// ObserveDispatch counts one dispatch outcome.
func (m *Metrics) ObserveDispatch(outcome string) {
	if m == nil {
		return
	}
	m.Dispatches.WithLabelValues(outcome).Inc()
}

// ObserveNotice counts one ephemeral notice.
func (m *Metrics) ObserveNotice() {
	if m == nil {
		return
	}
	m.NoticesScheduled.Inc()
}

// ObserveLoad records the totals of a module load.
func (m *Metrics) ObserveLoad(modules, commands, listeners int) {
	if m == nil {
		return
	}
	m.ModulesLoaded.Set(float64(modules))
	m.CommandsLoaded.Set(float64(commands))
	m.ListenersLoaded.Set(float64(listeners))
}

// Middleware counts and times command runs.
func (m *Metrics) Middleware() core.Middleware {
	return func(cmd *core.Command, next core.RunFunc) core.RunFunc {
		if m == nil {
			return next
		}
		return func(ctx context.Context, c core.Client, info *core.CommandInfo, args []string, parsed core.Args) error {
			start := time.Now()
			err := next(ctx, c, info, args, parsed)
			m.Commands.WithLabelValues(cmd.Label, cmd.Module).Inc()
			m.CommandDuration.WithLabelValues(cmd.Label).Observe(time.Since(start).Seconds())
			if err != nil {
				m.CommandErrors.WithLabelValues(cmd.Label, cmd.Module).Inc()
			}
			return err
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve runs the metrics endpoint on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
