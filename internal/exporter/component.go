// Package exporter serves the daemon's prometheus metrics.
package exporter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veesix-networks/osvrouter/pkg/component"
	"github.com/veesix-networks/osvrouter/pkg/events"
	"github.com/veesix-networks/osvrouter/pkg/logger"
)

type Component struct {
	*component.Base

	logger   *slog.Logger
	addr     string
	eventBus events.Bus
	extra    []prometheus.Collector
	server   *http.Server
}

// New builds the exporter; collectors from other components (the
// classification engine's counters) are registered alongside the bus gauges.
func New(deps component.Dependencies, collectors ...prometheus.Collector) (*Component, error) {
	return &Component{
		Base:     component.NewBase("exporter"),
		logger:   logger.Component(logger.Exporter),
		addr:     deps.Config.Monitoring.MetricsAddress,
		eventBus: deps.EventBus,
		extra:    collectors,
	}, nil
}

func (c *Component) Start(ctx context.Context) error {
	c.StartContext(ctx)
	if c.addr == "" {
		c.logger.Info("Metrics address not configured, exporter disabled")
		return nil
	}

	registry := prometheus.NewRegistry()
	for _, collector := range c.extra {
		registry.MustRegister(collector)
	}
	registry.MustRegister(newBusCollector(c.eventBus))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	c.server = &http.Server{Addr: c.addr, Handler: mux}
	c.Go(func() {
		c.logger.Info("Metrics server listening", "addr", c.addr)
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("Metrics server error", "error", err)
		}
	})
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.logger.Info("Stopping exporter component")
	if c.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.server.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("Metrics server shutdown", "error", err)
		}
	}
	c.StopContext()
	return nil
}

// busCollector exposes event bus health as gauges.
type busCollector struct {
	bus       events.Bus
	published *prometheus.Desc
	dropped   *prometheus.Desc
	queueLen  *prometheus.Desc
}

func newBusCollector(bus events.Bus) *busCollector {
	return &busCollector{
		bus: bus,
		published: prometheus.NewDesc("osvrouter_events_published_total",
			"Events published on the internal bus.", nil, nil),
		dropped: prometheus.NewDesc("osvrouter_events_dropped_total",
			"Events dropped because the bus queue was full.", nil, nil),
		queueLen: prometheus.NewDesc("osvrouter_events_queue_length",
			"Current length of the bus publish queue.", nil, nil),
	}
}

func (b *busCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- b.published
	ch <- b.dropped
	ch <- b.queueLen
}

func (b *busCollector) Collect(ch chan<- prometheus.Metric) {
	stats := b.bus.Stats()
	ch <- prometheus.MustNewConstMetric(b.published, prometheus.CounterValue, float64(stats.Published))
	ch <- prometheus.MustNewConstMetric(b.dropped, prometheus.CounterValue, float64(stats.Dropped))
	ch <- prometheus.MustNewConstMetric(b.queueLen, prometheus.GaugeValue, float64(stats.PublishChLen))
}
