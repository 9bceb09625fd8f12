package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SimulatorMetrics contains Prometheus metrics for the telemetry simulator.
type SimulatorMetrics struct {
	TicksTotal        prometheus.Counter
	TickDuration      prometheus.Histogram
	ReadingsGenerated prometheus.Counter
	SiloFailures      prometheus.Counter
	AlertsTriggered   *prometheus.CounterVec
	ActiveSilos       prometheus.Gauge
}

// NewSimulatorMetrics creates and registers simulator metrics.
func NewSimulatorMetrics(namespace string) *SimulatorMetrics {
	m := &SimulatorMetrics{
		TicksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "ticks_total",
				Help:      "Total number of simulation ticks",
			},
		),
		TickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "tick_duration_seconds",
				Help:      "Duration of a full simulation tick across all silos",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ReadingsGenerated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "readings_generated_total",
				Help:      "Total number of sensor readings generated",
			},
		),
		SiloFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "silo_failures_total",
				Help:      "Total number of per-silo tick failures",
			},
		),
		AlertsTriggered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "alerts_triggered_total",
				Help:      "Total number of threshold alerts triggered",
			},
			[]string{"type"},
		),
		ActiveSilos: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "active_silos",
				Help:      "Number of active silos seen on the last tick",
			},
		),
	}

	MustRegister(
		m.TicksTotal,
		m.TickDuration,
		m.ReadingsGenerated,
		m.SiloFailures,
		m.AlertsTriggered,
		m.ActiveSilos,
	)

	return m
}
