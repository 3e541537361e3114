// Package metrics exports pressbot counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/pressbot/core/conversation"
	"github.com/m3rciful/pressbot/core/logger"
)

const namespace = "pressbot"

var _ conversation.Observer = (*Exporter)(nil)

// Exporter owns a private registry with every pressbot metric.
type Exporter struct {
	registry *prometheus.Registry

	transitions     *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	reloadRows      *prometheus.CounterVec

	commits     *prometheus.CounterVec
	commitItems *prometheus.CounterVec
	publishes   *prometheus.CounterVec

	updates       *prometheus.CounterVec
	updateLatency *prometheus.HistogramVec
	rateLimited   prometheus.Counter
}

// New builds an exporter. The Go runtime and process collectors are
// registered alongside.
func New() *Exporter {
	e := &Exporter{registry: prometheus.NewRegistry()}

	e.transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "state",
		Name:      "transitions_total",
		Help:      "Conversation phase transitions.",
	}, []string{"from", "to"})
	e.persistFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "state",
		Name:      "persist_failures_total",
		Help:      "Conversation state writes that failed and were rolled back.",
	}, []string{"op"})
	e.reloadRows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "state",
		Name:      "reload_rows_total",
		Help:      "Persisted states handled at startup.",
	}, []string{"outcome"})

	e.commits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "template",
		Name:      "placeholder_commits_total",
		Help:      "Custom placeholder configuration commits.",
	}, []string{"status"})
	e.commitItems = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "template",
		Name:      "placeholder_items_total",
		Help:      "Custom placeholders written by commits.",
	}, []string{"status"})
	e.publishes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "publish",
		Name:      "pages_total",
		Help:      "Rendered pages delivered to a sink.",
	}, []string{"status"})

	e.updates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "telegram",
		Name:      "updates_total",
		Help:      "Telegram updates handled.",
	}, []string{"kind", "status"})
	e.updateLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "telegram",
		Name:      "update_duration_seconds",
		Help:      "Time spent handling a Telegram update.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"kind"})
	e.rateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "telegram",
		Name:      "rate_limited_total",
		Help:      "Updates dropped by the per-user rate limit.",
	})

	e.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		e.transitions, e.persistFailures, e.reloadRows,
		e.commits, e.commitItems, e.publishes,
		e.updates, e.updateLatency, e.rateLimited,
	)
	return e
}

// Registry returns the exporter's registry.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Transition counts a phase change.
func (e *Exporter) Transition(from, to conversation.Phase) {
	e.transitions.WithLabelValues(from.String(), to.String()).Inc()
}

// PersistFailure counts a failed state write.
func (e *Exporter) PersistFailure(op string) {
	e.persistFailures.WithLabelValues(op).Inc()
}

// Reloaded counts the outcome of a startup reload.
func (e *Exporter) Reloaded(restored, purged int) {
	e.reloadRows.WithLabelValues("restored").Add(float64(restored))
	e.reloadRows.WithLabelValues("purged").Add(float64(purged))
}

// PlaceholderCommit counts a custom placeholder commit.
func (e *Exporter) PlaceholderCommit(report conversation.CommitReport) {
	status := "ok"
	if !report.OK() {
		status = "partial"
	}
	e.commits.WithLabelValues(status).Inc()
	e.commitItems.WithLabelValues("ok").Add(float64(report.Succeeded))
	e.commitItems.WithLabelValues("failed").Add(float64(len(report.Failures)))
}

// Published counts a page delivery.
func (e *Exporter) Published(err error) {
	e.publishes.WithLabelValues(statusOf(err)).Inc()
}

// Update records a handled Telegram update.
func (e *Exporter) Update(kind string, took time.Duration, err error) {
	e.updates.WithLabelValues(kind, statusOf(err)).Inc()
	e.updateLatency.WithLabelValues(kind).Observe(took.Seconds())
}

// RateLimited counts an update dropped by the rate limiter.
func (e *Exporter) RateLimited() { e.rateLimited.Inc() }

func statusOf(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

// Handler serves the registry in the Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve exposes Handler on listen at path until ctx is done.
func (e *Exporter) Serve(ctx context.Context, listen, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, e.Handler())
	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info(ctx, "metrics", "metrics.listen",
		slog.String("status", "ok"),
		slog.String("addr", listen),
		slog.String("path", path),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error(ctx, "metrics", "metrics.listen",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
