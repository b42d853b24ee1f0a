// internal/metrics/prometheus.go
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ravenwatch/internal/database"
)

// Prometheus metrics
var (
	ProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "raven_probe_duration_seconds",
			Help:    "Wall-clock duration of monitor probes",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"monitor", "result"},
	)

	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raven_probes_total",
			Help: "Total number of probes executed",
		},
		[]string{"result"},
	)

	MonitorHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "raven_monitor_healthy",
			Help: "Verdict of the most recent probe (1=healthy, 0=unhealthy)",
		},
		[]string{"monitor"},
	)

	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raven_events_total",
			Help: "Events emitted by kind",
		},
		[]string{"kind"},
	)

	SinkFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raven_event_sink_failures_total",
			Help: "Event deliveries that failed, by sink",
		},
		[]string{"sink"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raven_cycle_duration_seconds",
			Help:    "Time spent running one probe cycle",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	CyclesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "raven_cycles_skipped_total",
			Help: "Timer ticks skipped because a cycle was still running",
		},
	)

	DatabaseOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raven_database_operations_total",
			Help: "Total database operations performed",
		},
		[]string{"operation", "status"},
	)

	ActiveMonitors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "raven_active_monitors_total",
			Help: "Number of monitors with a URL configured",
		},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "raven_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)
)

type Collector struct {
	store database.MonitorStore
}

func NewCollector(store database.MonitorStore) *Collector {
	return &Collector{store: store}
}

// RecordProbe records one probe. result is "healthy", "unhealthy" or "transport_error".
func (c *Collector) RecordProbe(monitorID, result string, duration time.Duration, healthy bool) {
	ProbeDuration.WithLabelValues(monitorID, result).Observe(duration.Seconds())
	ProbesTotal.WithLabelValues(result).Inc()
	if healthy {
		MonitorHealthy.WithLabelValues(monitorID).Set(1)
	} else {
		MonitorHealthy.WithLabelValues(monitorID).Set(0)
	}
}

func (c *Collector) RecordEvent(kind string) {
	EventsTotal.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordSinkFailure(sink string) {
	SinkFailures.WithLabelValues(sink).Inc()
}

func (c *Collector) RecordCycle(duration time.Duration) {
	CycleDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordSkippedCycle() {
	CyclesSkipped.Inc()
}

func (c *Collector) RecordDatabaseOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperations.WithLabelValues(operation, status).Inc()
}

func (c *Collector) UpdateSystemMetrics(ctx context.Context) error {
	monitors, err := c.store.GetMonitors(ctx)
	c.RecordDatabaseOperation("get_monitors", err)
	if err != nil {
		return err
	}

	active := 0
	for _, m := range monitors {
		if m.URL != "" {
			active++
		}
	}
	ActiveMonitors.Set(float64(active))

	return nil
}

func (c *Collector) RecordWebSocketConnection(delta int) {
	WebSocketConnections.Add(float64(delta))
}
