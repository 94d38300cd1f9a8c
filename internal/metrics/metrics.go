// ABOUTME: Prometheus collectors for deliveries, likes, saves and updates
// ABOUTME: Optional HTTP endpoint served with promhttp

package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/fanpost/internal/transport"
)

const namespace = "fanpost"

// Channel operations recorded by Delivery.
const (
	OpSend   = "send"
	OpDelete = "delete"
	OpEdit   = "edit"
)

// Metrics holds the bot's collectors.
type Metrics struct {
	channelOps   *prometheus.CounterVec
	likes        *prometheus.CounterVec
	saves        *prometheus.CounterVec
	saveDuration prometheus.Histogram
	updates      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		channelOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_operations_total",
			Help:      "Per-channel send, delete and keyboard edit attempts by result.",
		}, []string{"op", "result"}),
		likes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "likes_total",
			Help:      "Like button presses by outcome.",
		}, []string{"outcome"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_saves_total",
			Help:      "Snapshot writes by result.",
		}, []string{"result"}),
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_save_seconds",
			Help:      "Time spent writing snapshots.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Inbound updates by kind, duplicates included.",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.channelOps, m.likes, m.saves, m.saveDuration, m.updates)
	return m
}

// Delivery records one per-channel operation.
func (m *Metrics) Delivery(op string, err error) {
	if m == nil {
		return
	}
	m.channelOps.WithLabelValues(op, result(err)).Inc()
}

// Like records a like outcome.
func (m *Metrics) Like(outcome string) {
	if m == nil {
		return
	}
	m.likes.WithLabelValues(outcome).Inc()
}

// Save records a snapshot write. Its signature matches store.WithSaveObserver.
func (m *Metrics) Save(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(result(err)).Inc()
	m.saveDuration.Observe(d.Seconds())
}

// Update records an inbound update.
func (m *Metrics) Update(kind string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(kind).Inc()
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, transport.ErrNotModified):
		return "not_modified"
	default:
		return "error"
	}
}

// Serve exposes the gatherer on addr at path until ctx is cancelled.
func Serve(ctx context.Context, addr, path string, g prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", addr, "path", path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
