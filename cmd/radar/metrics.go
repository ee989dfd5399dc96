package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yourorg/yield-radar/internal/pipeline"
)

// radarMetrics holds Prometheus metrics for the pipeline
type radarMetrics struct {
	runCounter    *prometheus.CounterVec
	runDuration   prometheus.Histogram
	adapterErrors *prometheus.CounterVec
	recordCount   prometheus.Gauge
	totalTVL      prometheus.Gauge
	breakerState  prometheus.Gauge
}

// registerMetrics sets up Prometheus metrics collection
func registerMetrics() *radarMetrics {
	m := &radarMetrics{
		runCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radar_runs_total",
				Help: "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "radar_run_duration_seconds",
				Help:    "Pipeline run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		adapterErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radar_adapter_errors_total",
				Help: "Total number of adapter fetch failures",
			},
			[]string{"adapter"},
		),
		recordCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "radar_record_count",
				Help: "Records in the latest aggregated snapshot",
			},
		),
		totalTVL: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "radar_total_tvl",
				Help: "Total USD TVL in the latest aggregated snapshot",
			},
		),
		breakerState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "radar_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
		),
	}

	prometheus.MustRegister(
		m.runCounter,
		m.runDuration,
		m.adapterErrors,
		m.recordCount,
		m.totalTVL,
		m.breakerState,
	)

	return m
}

// observe records one pipeline run's outcome.
func (m *radarMetrics) observe(rep pipeline.RunReport, seconds float64, err error) {
	outcome := "published"
	switch {
	case err != nil:
		outcome = "error"
	case !rep.Published:
		outcome = "suppressed"
	}
	m.runCounter.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(seconds)

	for _, res := range rep.Results {
		if res.Err != nil {
			m.adapterErrors.WithLabelValues(res.Adapter).Inc()
		}
	}
	m.recordCount.Set(float64(rep.Buckets.Count()))
	m.totalTVL.Set(rep.Buckets.TotalTVL())
}
