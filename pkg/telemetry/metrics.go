package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the Prometheus gauges Ops scrapes off the scheduler process: outbox
// backlogs, drain batch timings, and the overdue-schedule signal. The OTLP instruments in
// internal/observability/metrics cover per-operation counters; these gauges exist so a
// plain Prometheus scrape can alert on queue health without an OTel collector in the path.
type Metrics struct {
	outboxDispatch     *prometheus.CounterVec
	outboxDispatchTime *prometheus.HistogramVec
	outboxBacklog      prometheus.Gauge
	posOutboxBacklog   prometheus.Gauge
	deadEvents         prometheus.Gauge
	overdueSchedules   prometheus.Gauge
	heartbeatAge       *prometheus.GaugeVec
}

// NewMetrics registers and returns the scheduler's Prometheus metrics.
func NewMetrics() *Metrics {
	outboxDispatch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "core_outbox_dispatch_total",
		Help: "Counts outbox drain batches by status.",
	}, []string{"status"})

	outboxDispatchTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "core_outbox_dispatch_duration_seconds",
		Help:    "Outbox drain batch durations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	outboxBacklog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "core_outbox_backlog",
		Help: "Number of pending events in the business-event outbox.",
	})

	posOutboxBacklog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "core_pos_outbox_backlog",
		Help: "Number of pending events in the POS device outbox.",
	})

	deadEvents := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "core_outbox_dead_events",
		Help: "Number of dead-lettered outbox events awaiting triage.",
	})

	overdueSchedules := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "core_overdue_job_schedules",
		Help: "Enabled job schedules that have missed next_run_at beyond the overdue threshold.",
	})

	heartbeatAge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "core_worker_heartbeat_age_seconds",
		Help: "Seconds since each worker's last heartbeat.",
	}, []string{"worker"})

	prometheus.MustRegister(
		outboxDispatch,
		outboxDispatchTime,
		outboxBacklog,
		posOutboxBacklog,
		deadEvents,
		overdueSchedules,
		heartbeatAge,
	)

	return &Metrics{
		outboxDispatch:     outboxDispatch,
		outboxDispatchTime: outboxDispatchTime,
		outboxBacklog:      outboxBacklog,
		posOutboxBacklog:   posOutboxBacklog,
		deadEvents:         deadEvents,
		overdueSchedules:   overdueSchedules,
		heartbeatAge:       heartbeatAge,
	}
}

// RecordOutboxBatch registers one drain batch's outcome and duration.
func (m *Metrics) RecordOutboxBatch(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.outboxDispatch.WithLabelValues(sanitizeLabel(status)).Inc()
	m.outboxDispatchTime.WithLabelValues(sanitizeLabel(status)).Observe(duration.Seconds())
}

// SetOutboxBacklog updates the business-event backlog gauge.
func (m *Metrics) SetOutboxBacklog(value float64) {
	if m == nil {
		return
	}
	m.outboxBacklog.Set(value)
}

// SetPosOutboxBacklog updates the POS device backlog gauge.
func (m *Metrics) SetPosOutboxBacklog(value float64) {
	if m == nil {
		return
	}
	m.posOutboxBacklog.Set(value)
}

// SetDeadEvents updates the dead-letter gauge.
func (m *Metrics) SetDeadEvents(value float64) {
	if m == nil {
		return
	}
	m.deadEvents.Set(value)
}

// SetOverdueSchedules updates the overdue-schedule gauge.
func (m *Metrics) SetOverdueSchedules(value float64) {
	if m == nil {
		return
	}
	m.overdueSchedules.Set(value)
}

// SetHeartbeatAge records how stale a worker's heartbeat is.
func (m *Metrics) SetHeartbeatAge(worker string, age time.Duration) {
	if m == nil {
		return
	}
	m.heartbeatAge.WithLabelValues(sanitizeLabel(worker)).Set(age.Seconds())
}

func sanitizeLabel(val string) string {
	if val == "" {
		return "unknown"
	}
	return val
}
