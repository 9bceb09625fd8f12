package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PredictionMetrics contains Prometheus metrics for the prediction engine.
type PredictionMetrics struct {
	RunsTotal            prometheus.Counter
	RunDuration          prometheus.Histogram
	PredictionsGenerated prometheus.Counter
	SilosSkipped         prometheus.Counter
	SiloFailures         prometheus.Counter
	HighRiskAlerts       prometheus.Counter
}

// NewPredictionMetrics creates and registers prediction engine metrics.
func NewPredictionMetrics(namespace string) *PredictionMetrics {
	m := &PredictionMetrics{
		RunsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "prediction",
				Name:      "runs_total",
				Help:      "Total number of prediction runs",
			},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "prediction",
				Name:      "run_duration_seconds",
				Help:      "Duration of a full prediction run across all silos",
				Buckets:   prometheus.DefBuckets,
			},
		),
		PredictionsGenerated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "prediction",
				Name:      "predictions_generated_total",
				Help:      "Total number of predictions generated",
			},
		),
		SilosSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "prediction",
				Name:      "silos_skipped_total",
				Help:      "Total number of silos skipped for sparse reading windows",
			},
		),
		SiloFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "prediction",
				Name:      "silo_failures_total",
				Help:      "Total number of per-silo prediction failures",
			},
		),
		HighRiskAlerts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "prediction",
				Name:      "high_risk_alerts_total",
				Help:      "Total number of high spoilage risk alerts raised",
			},
		),
	}

	MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.PredictionsGenerated,
		m.SilosSkipped,
		m.SiloFailures,
		m.HighRiskAlerts,
	)

	return m
}
