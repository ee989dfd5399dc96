// Package aggregate fans out to the source adapters, resolves cross-provider
// overlap, and produces the categorized, sorted snapshot of the current
// yield landscape.
package aggregate

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourorg/yield-radar/internal/classify"
	"github.com/yourorg/yield-radar/internal/fetch"
	"github.com/yourorg/yield-radar/internal/model"
	"github.com/yourorg/yield-radar/internal/otel"
	"github.com/yourorg/yield-radar/internal/validation"
)

// OverlapRule excludes one provider's records for a protocol covered more
// completely by another adapter. The exclusion is asymmetric and configured
// per protocol: content-based deduplication would also remove coverage that
// is intentionally kept in both providers.
type OverlapRule struct {
	// ProtocolPattern is matched as a case-insensitive substring of the
	// record's source name.
	ProtocolPattern string

	// ExcludeFrom names the adapter whose matching records are dropped.
	ExcludeFrom string
}

// Options configures the merge pass.
type Options struct {
	// Rules is the ordered overlap-exclusion policy.
	Rules []OverlapRule

	// TopN is the length of the cross-category top list.
	TopN int

	// Validity is the data-validity band applied before bucketing.
	Validity validation.Options

	// AdapterTimeout caps each adapter's fetch; a timed-out adapter is an
	// empty contribution, not a run failure.
	AdapterTimeout time.Duration
}

// DefaultOptions returns the merge configuration used in production.
func DefaultOptions() Options {
	return Options{
		TopN:           10,
		Validity:       validation.DefaultOptions(),
		AdapterTimeout: 15 * time.Second,
	}
}

// AdapterResult records one adapter's contribution to a run, failure cause
// included, so callers and tests can inspect what Fetch's non-throwing
// surface hides.
type AdapterResult struct {
	Adapter  string
	Records  []model.YieldRecord
	Err      error
	Duration time.Duration
}

// Aggregator owns the adapter set and the merge policy.
type Aggregator struct {
	adapters []fetch.Adapter
	opts     Options
}

// New creates an Aggregator over the given adapters.
func New(adapters []fetch.Adapter, opts Options) *Aggregator {
	if opts.TopN <= 0 {
		opts.TopN = DefaultOptions().TopN
	}
	if opts.AdapterTimeout <= 0 {
		opts.AdapterTimeout = DefaultOptions().AdapterTimeout
	}
	return &Aggregator{adapters: adapters, opts: opts}
}

// Run executes all adapters concurrently, waits for every one to finish or
// time out, and merges the surviving records. Adapter errors are collapsed
// to empty contributions at this boundary; the returned results carry the
// causes for logs and metrics.
func (a *Aggregator) Run(ctx context.Context) (model.Buckets, []AdapterResult) {
	ctx, span := otel.Tracer().Start(ctx, "aggregate.Run")
	defer span.End()

	results := make([]AdapterResult, len(a.adapters))

	var wg sync.WaitGroup
	for i, adapter := range a.adapters {
		wg.Add(1)
		go func(i int, adapter fetch.Adapter) {
			defer wg.Done()
			results[i] = a.runAdapter(ctx, adapter)
		}(i, adapter)
	}
	wg.Wait()

	for _, res := range results {
		if res.Err != nil {
			logrus.WithFields(logrus.Fields{
				"adapter":  res.Adapter,
				"duration": res.Duration,
			}).WithError(res.Err).Error("Adapter fetch failed")
			continue
		}
		logrus.WithFields(logrus.Fields{
			"adapter":  res.Adapter,
			"records":  len(res.Records),
			"duration": res.Duration,
		}).Info("Adapter fetch complete")
	}

	buckets := Merge(results, a.opts)
	span.SetAttributes(attribute.Int("records", buckets.Count()))
	return buckets, results
}

func (a *Aggregator) runAdapter(ctx context.Context, adapter fetch.Adapter) AdapterResult {
	ctx, cancel := context.WithTimeout(ctx, a.opts.AdapterTimeout)
	defer cancel()

	ctx, span := otel.Tracer().Start(ctx, "fetch."+adapter.Name(),
		trace.WithAttributes(attribute.String("adapter", adapter.Name())))
	defer span.End()

	start := time.Now()
	records, err := adapter.Fetch(ctx)
	if err != nil {
		span.RecordError(err)
		records = nil
	}
	return AdapterResult{
		Adapter:  adapter.Name(),
		Records:  records,
		Err:      err,
		Duration: time.Since(start),
	}
}

// Merge applies the overlap rules and validity band, buckets records by
// category with pair-risk gating, sorts, and builds the top-N view.
func Merge(results []AdapterResult, opts Options) model.Buckets {
	buckets := model.Buckets{
		PerCategory: make(map[model.Category][]model.YieldRecord),
	}

	var merged []model.YieldRecord
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		for _, rec := range res.Records {
			if excludedByRule(res.Adapter, rec, opts.Rules) {
				continue
			}
			merged = append(merged, rec)
		}
	}
	merged = validation.FilterInvalidWithOptions(merged, opts.Validity)

	for _, rec := range merged {
		switch {
		case classify.IsSingleAsset(rec.AssetSymbol):
			buckets.PerCategory[rec.Category] = append(buckets.PerCategory[rec.Category], rec)
		case classify.IsRiskFlaggedPair(rec.AssetSymbol):
			rec.IsRiskFlaggedPair = true
			buckets.RiskFlagged = append(buckets.RiskFlagged, rec)
		case classify.PairBelongsToCategory(rec.AssetSymbol, rec.Category) &&
			classify.IsCorrelatedPair(rec.AssetSymbol, rec.Category):
			buckets.PerCategory[rec.Category] = append(buckets.PerCategory[rec.Category], rec)
		default:
			// Uncorrelated or cross-category pair outside the flagged
			// pattern: dropped entirely.
		}
	}

	for category, recs := range buckets.PerCategory {
		buckets.PerCategory[category] = sortByProviderGroups(recs)
	}
	sort.SliceStable(buckets.RiskFlagged, func(i, j int) bool {
		return buckets.RiskFlagged[i].TVL > buckets.RiskFlagged[j].TVL
	})

	buckets.TopByAPY = topByAPY(buckets, opts.TopN)
	return buckets
}

// excludedByRule reports whether a record from the given adapter matches an
// overlap-exclusion rule.
func excludedByRule(adapter string, rec model.YieldRecord, rules []OverlapRule) bool {
	source := strings.ToLower(rec.SourceName)
	for _, rule := range rules {
		if rule.ExcludeFrom != adapter {
			continue
		}
		if strings.Contains(source, strings.ToLower(rule.ProtocolPattern)) {
			return true
		}
	}
	return false
}

// sortByProviderGroups orders a category bucket: records grouped by source
// name, groups by their total TVL descending, records within a group by TVL
// descending.
func sortByProviderGroups(recs []model.YieldRecord) []model.YieldRecord {
	groups := make(map[string][]model.YieldRecord)
	totals := make(map[string]float64)
	var order []string
	for _, rec := range recs {
		if _, seen := groups[rec.SourceName]; !seen {
			order = append(order, rec.SourceName)
		}
		groups[rec.SourceName] = append(groups[rec.SourceName], rec)
		totals[rec.SourceName] += rec.TVL
	}

	sort.SliceStable(order, func(i, j int) bool {
		return totals[order[i]] > totals[order[j]]
	})

	sorted := make([]model.YieldRecord, 0, len(recs))
	for _, source := range order {
		group := groups[source]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].TVL > group[j].TVL
		})
		sorted = append(sorted, group...)
	}
	return sorted
}

// topByAPY builds the cross-category top-N list. Risk-flagged records are
// excluded; ties keep original bucket order via the stable sort.
func topByAPY(buckets model.Buckets, n int) []model.YieldRecord {
	var all []model.YieldRecord
	for _, category := range model.Categories() {
		all = append(all, buckets.PerCategory[category]...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].APYTotal > all[j].APYTotal
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}
