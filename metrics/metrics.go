// Package metrics exposes Prometheus instrumentation for the procurement engine.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/procurement-engine/procurement"
)

// Metrics owns a private registry so tests and multiple servers never
// collide on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	// NotificationsTotal counts emitted notifications by type and severity.
	NotificationsTotal *prometheus.CounterVec
	// SinkErrorsTotal counts notification deliveries that failed.
	SinkErrorsTotal *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "procurement_notifications_total",
			Help: "Total notifications emitted by type and severity",
		}, []string{"type", "severity"}),
		SinkErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "procurement_notification_errors_total",
			Help: "Total notification deliveries that failed",
		}, []string{"type"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// WatchRequests registers a gauge of requests per status, read from the
// store at scrape time.
func (m *Metrics) WatchRequests(store procurement.RequestStore, logger *slog.Logger) {
	m.Registry.MustRegister(&statusCollector{store: store, logger: logger})
}

// WatchGauge registers a gauge whose value is read from fn at scrape time.
func (m *Metrics) WatchGauge(name, help string, fn func() float64) {
	m.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn))
}

// =============================================================================
// COUNTING SINK
// =============================================================================

// CountingSink counts notifications before handing them to Next.
type CountingSink struct {
	Next    procurement.NotificationSink
	Metrics *Metrics
}

func (s CountingSink) Notify(ctx context.Context, n procurement.Notification) error {
	s.Metrics.NotificationsTotal.WithLabelValues(string(n.Type), string(n.Severity)).Inc()
	if s.Next == nil {
		return nil
	}
	err := s.Next.Notify(ctx, n)
	if err != nil {
		s.Metrics.SinkErrorsTotal.WithLabelValues(string(n.Type)).Inc()
	}
	return err
}

// =============================================================================
// STATUS COLLECTOR
// =============================================================================

var requestsDesc = prometheus.NewDesc(
	"procurement_requests",
	"Number of purchase requests by status",
	[]string{"status"}, nil,
)

type statusCollector struct {
	store  procurement.RequestStore
	logger *slog.Logger
}

func (c *statusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- requestsDesc
}

func (c *statusCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	requests, err := c.store.List(ctx, procurement.RequestFilter{})
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("collecting request metrics failed", "error", err)
		}
		return
	}

	counts := make(map[procurement.Status]int, len(procurement.AllStatuses))
	for _, r := range requests {
		counts[r.Status]++
	}
	for _, st := range procurement.AllStatuses {
		ch <- prometheus.MustNewConstMetric(requestsDesc, prometheus.GaugeValue, float64(counts[st]), string(st))
	}
}
