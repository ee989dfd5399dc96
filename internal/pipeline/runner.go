// Package pipeline ties one full run together: fetch and merge, record
// history, judge data quality, and deliver the rendered report.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/yield-radar/internal/aggregate"
	"github.com/yourorg/yield-radar/internal/circuitbreaker"
	"github.com/yourorg/yield-radar/internal/history"
	"github.com/yourorg/yield-radar/internal/model"
	"github.com/yourorg/yield-radar/internal/report"
)

// Notifier delivers a rendered report.
type Notifier interface {
	Send(text string) error
}

// RunReport summarizes one pipeline run for callers and metrics.
type RunReport struct {
	Buckets   model.Buckets
	Results   []aggregate.AdapterResult
	Message   string
	Published bool

	// SkipReason explains a suppressed publication, empty otherwise.
	SkipReason string
}

// Runner orchestrates the pipeline stages.
type Runner struct {
	aggregator *aggregate.Aggregator
	breaker    *circuitbreaker.CircuitBreaker
	tracker    *history.Tracker
	formatter  *report.Formatter
	notifier   Notifier
	windowDays int

	// flush persists the snapshot store after a completed run, optional.
	flush func() error
}

// NewRunner wires the pipeline stages. A nil notifier disables delivery;
// the report is still rendered so callers can print it.
func NewRunner(
	aggregator *aggregate.Aggregator,
	breaker *circuitbreaker.CircuitBreaker,
	tracker *history.Tracker,
	formatter *report.Formatter,
	notifier Notifier,
	windowDays int,
) *Runner {
	if windowDays <= 0 {
		windowDays = 7
	}
	return &Runner{
		aggregator: aggregator,
		breaker:    breaker,
		tracker:    tracker,
		formatter:  formatter,
		notifier:   notifier,
		windowDays: windowDays,
	}
}

// WithFlush registers a persistence hook invoked after history recording.
func (r *Runner) WithFlush(flush func() error) *Runner {
	r.flush = flush
	return r
}

// RunOnce executes one full pipeline run. Adapter failures never fail the
// run; a cancelled context or a failed delivery does.
func (r *Runner) RunOnce(ctx context.Context) (RunReport, error) {
	now := time.Now()
	buckets, results := r.aggregator.Run(ctx)

	rep := RunReport{Buckets: buckets, Results: results}

	// A cancelled run produced partial data at best; keep it out of history.
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	r.tracker.RecordRun(buckets, now)
	if r.flush != nil {
		if err := r.flush(); err != nil {
			logrus.WithError(err).Error("Failed to persist snapshot history")
		}
	}

	summary := circuitbreaker.RunSummary{
		HealthyProviders: healthyProviders(results),
		TotalTVL:         buckets.TotalTVL(),
	}
	if err := r.breaker.Check(summary); err != nil {
		logrus.WithError(err).Warn("Publication suppressed")
		rep.SkipReason = err.Error()
		return rep, nil
	}

	r.formatter.WithAverages(func(identity string) (float64, bool) {
		return r.tracker.AverageOverWindow(identity, r.windowDays)
	})
	rep.Message = r.formatter.Format(buckets, now)

	if r.notifier == nil {
		rep.SkipReason = "delivery disabled"
		return rep, nil
	}
	if err := r.notifier.Send(rep.Message); err != nil {
		return rep, fmt.Errorf("report delivery failed: %w", err)
	}
	rep.Published = true

	logrus.WithFields(logrus.Fields{
		"records":   buckets.Count(),
		"total_tvl": buckets.TotalTVL(),
		"providers": summary.HealthyProviders,
	}).Info("Report published")
	return rep, nil
}

// healthyProviders counts adapters that contributed at least one record.
func healthyProviders(results []aggregate.AdapterResult) int {
	count := 0
	for _, res := range results {
		if res.Err == nil && len(res.Records) > 0 {
			count++
		}
	}
	return count
}
