package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/yield-radar/internal/fetch"
	"github.com/yourorg/yield-radar/internal/model"
	"github.com/yourorg/yield-radar/internal/validation"
)

type stubAdapter struct {
	name    string
	records []model.YieldRecord
	err     error
	delay   time.Duration
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Fetch(ctx context.Context) ([]model.YieldRecord, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.records, s.err
}

func rec(source, symbol string, apy, tvl float64, category model.Category) model.YieldRecord {
	return model.YieldRecord{
		Category:    category,
		SourceName:  source,
		AssetSymbol: symbol,
		APYBase:     apy,
		APYTotal:    apy,
		TVL:         tvl,
	}
}

func results(rs ...AdapterResult) []AdapterResult { return rs }

func TestMerge_OverlapExclusion(t *testing.T) {
	// Two adapters cover the same protocol. The rule drops the broad
	// provider's records; the dedicated adapter's richer coverage wins.
	specific := AdapterResult{Adapter: "hover", Records: []model.YieldRecord{
		rec("hover", "USDT", 4.0, 100, model.CategoryStable),
		rec("hover", "USDC", 3.5, 50, model.CategoryStable),
	}}
	broad := AdapterResult{Adapter: "defillama", Records: []model.YieldRecord{
		rec("hover", "USDT", 3.9, 200, model.CategoryStable),
		rec("other-protocol", "DAI", 2.0, 300, model.CategoryStable),
	}}

	opts := DefaultOptions()
	opts.Rules = []OverlapRule{{ProtocolPattern: "hover", ExcludeFrom: "defillama"}}

	buckets := Merge(results(specific, broad), opts)
	stable := buckets.PerCategory[model.CategoryStable]
	require.Len(t, stable, 3)

	// The broad provider's record for the excluded protocol is gone; its
	// record for an unruled protocol stays.
	sources := map[string]int{}
	var hoverTVL float64
	for _, r := range stable {
		sources[r.SourceName]++
		if r.SourceName == "hover" {
			hoverTVL += r.TVL
		}
	}
	assert.Equal(t, 2, sources["hover"])
	assert.Equal(t, 1, sources["other-protocol"])
	assert.Equal(t, 150.0, hoverTVL, "only the dedicated adapter's records survive")
}

func TestMerge_ExclusionIsAsymmetric(t *testing.T) {
	// No rule for this protocol: both providers' records are kept even
	// though they overlap by content.
	a := AdapterResult{Adapter: "defillama", Records: []model.YieldRecord{
		rec("kinetix", "KAVA", 5, 100, model.CategoryPrimary),
	}}
	b := AdapterResult{Adapter: "kinetix", Records: []model.YieldRecord{
		rec("kinetix", "KAVA", 5.1, 90, model.CategoryPrimary),
	}}

	buckets := Merge(results(a, b), DefaultOptions())
	assert.Len(t, buckets.PerCategory[model.CategoryPrimary], 2)
}

func TestMerge_EndToEndExclusionAndOrder(t *testing.T) {
	adapterA := AdapterResult{Adapter: "rise", Records: []model.YieldRecord{
		rec("staking", "KAVA", 8, 100, model.CategoryPrimary),
		rec("staking", "stKAVA", 9, 50, model.CategoryPrimary),
	}}
	adapterB := AdapterResult{Adapter: "defillama", Records: []model.YieldRecord{
		rec("staking", "KAVA", 7.5, 200, model.CategoryPrimary),
	}}

	opts := DefaultOptions()
	opts.Rules = []OverlapRule{{ProtocolPattern: "staking", ExcludeFrom: "defillama"}}

	buckets := Merge(results(adapterA, adapterB), opts)
	primary := buckets.PerCategory[model.CategoryPrimary]
	require.Len(t, primary, 2)
	assert.Equal(t, 100.0, primary[0].TVL)
	assert.Equal(t, 50.0, primary[1].TVL)
}

func TestMerge_OutOfBandDropped(t *testing.T) {
	res := AdapterResult{Adapter: "rise", Records: []model.YieldRecord{
		rec("staking", "KAVA", 15000, 1000, model.CategoryPrimary),
		rec("staking", "stKAVA", 9, 500, model.CategoryPrimary),
	}}

	buckets := Merge(results(res), DefaultOptions())
	primary := buckets.PerCategory[model.CategoryPrimary]
	require.Len(t, primary, 1)
	assert.Equal(t, "stKAVA", primary[0].AssetSymbol)
}

func TestMerge_PairBuckets(t *testing.T) {
	res := AdapterResult{Adapter: "beefy", Records: []model.YieldRecord{
		// correlated, in-category: kept
		rec("beefy", "KAVA-stKAVA", 12, 400, model.CategoryPrimary),
		// native vs dominant stable: risk-flagged section
		rec("beefy", "KAVA-USDT", 30, 900, model.CategoryStable),
		// cross-category outside the flagged pattern: dropped
		rec("beefy", "USDT-WBTC", 20, 800, model.CategorySecondary),
		// in-category but not in the correlated table: dropped
		rec("beefy", "USDT-FRAX", 6, 300, model.CategoryStable),
	}}

	buckets := Merge(results(res), DefaultOptions())

	require.Len(t, buckets.PerCategory[model.CategoryPrimary], 1)
	assert.Equal(t, "KAVA-stKAVA", buckets.PerCategory[model.CategoryPrimary][0].AssetSymbol)

	require.Len(t, buckets.RiskFlagged, 1)
	assert.Equal(t, "KAVA-USDT", buckets.RiskFlagged[0].AssetSymbol)
	assert.True(t, buckets.RiskFlagged[0].IsRiskFlaggedPair)

	assert.Empty(t, buckets.PerCategory[model.CategorySecondary])
	assert.Len(t, buckets.PerCategory[model.CategoryStable], 0)
}

func TestMerge_ProviderGroupOrdering(t *testing.T) {
	res := AdapterResult{Adapter: "defillama", Records: []model.YieldRecord{
		rec("small", "KAVA", 5, 50, model.CategoryPrimary),
		rec("big", "KAVA", 4, 300, model.CategoryPrimary),
		rec("big", "wKAVA", 3, 100, model.CategoryPrimary),
		rec("small", "stKAVA", 6, 80, model.CategoryPrimary),
	}}

	buckets := Merge(results(res), DefaultOptions())
	primary := buckets.PerCategory[model.CategoryPrimary]
	require.Len(t, primary, 4)

	// Group "big" totals 400, group "small" 130: big first, each group
	// internally TVL-descending.
	assert.Equal(t, []string{"big", "big", "small", "small"},
		[]string{primary[0].SourceName, primary[1].SourceName, primary[2].SourceName, primary[3].SourceName})
	assert.Equal(t, 300.0, primary[0].TVL)
	assert.Equal(t, 100.0, primary[1].TVL)
	assert.Equal(t, 80.0, primary[2].TVL)
	assert.Equal(t, 50.0, primary[3].TVL)
}

func TestMerge_TopByAPY(t *testing.T) {
	res := AdapterResult{Adapter: "defillama", Records: []model.YieldRecord{
		rec("a", "KAVA", 5, 100, model.CategoryPrimary),
		rec("b", "USDT", 9, 200, model.CategoryStable),
		rec("c", "WBTC", 7, 300, model.CategorySecondary),
		rec("d", "KAVA-USDT", 40, 400, model.CategoryStable), // risk-flagged, excluded from top
	}}

	opts := DefaultOptions()
	opts.TopN = 2

	buckets := Merge(results(res), opts)
	require.Len(t, buckets.TopByAPY, 2)
	assert.Equal(t, "USDT", buckets.TopByAPY[0].AssetSymbol)
	assert.Equal(t, "WBTC", buckets.TopByAPY[1].AssetSymbol)
}

func TestMerge_TopByAPY_StableTies(t *testing.T) {
	res := AdapterResult{Adapter: "defillama", Records: []model.YieldRecord{
		rec("a", "KAVA", 5, 500, model.CategoryPrimary),
		rec("b", "USDT", 5, 200, model.CategoryStable),
	}}

	buckets := Merge(results(res), DefaultOptions())
	require.Len(t, buckets.TopByAPY, 2)
	// Tie on APY keeps bucket order: primary before stable.
	assert.Equal(t, "KAVA", buckets.TopByAPY[0].AssetSymbol)
	assert.Equal(t, "USDT", buckets.TopByAPY[1].AssetSymbol)
}

func TestMerge_AllEmpty(t *testing.T) {
	buckets := Merge(results(
		AdapterResult{Adapter: "a", Err: errors.New("boom")},
		AdapterResult{Adapter: "b"},
	), DefaultOptions())
	assert.True(t, buckets.Empty())
	assert.Empty(t, buckets.TopByAPY)
}

func TestRun_CollapsesAdapterErrors(t *testing.T) {
	agg := New([]fetch.Adapter{
		&stubAdapter{name: "ok", records: []model.YieldRecord{
			rec("ok", "KAVA", 5, 100, model.CategoryPrimary),
		}},
		&stubAdapter{name: "down", err: errors.New("connection refused")},
	}, DefaultOptions())

	buckets, adapterResults := agg.Run(context.Background())
	require.Len(t, adapterResults, 2)
	assert.NoError(t, adapterResults[0].Err)
	assert.Error(t, adapterResults[1].Err)
	assert.Len(t, buckets.PerCategory[model.CategoryPrimary], 1)
}

func TestRun_AdapterTimeout(t *testing.T) {
	opts := DefaultOptions()
	opts.AdapterTimeout = 20 * time.Millisecond

	agg := New([]fetch.Adapter{
		&stubAdapter{name: "slow", delay: time.Second, records: []model.YieldRecord{
			rec("slow", "KAVA", 5, 100, model.CategoryPrimary),
		}},
		&stubAdapter{name: "fast", records: []model.YieldRecord{
			rec("fast", "USDT", 3, 200, model.CategoryStable),
		}},
	}, opts)

	start := time.Now()
	buckets, adapterResults := agg.Run(context.Background())
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.Error(t, adapterResults[0].Err)
	assert.True(t, buckets.Empty() == false)
	assert.Len(t, buckets.PerCategory[model.CategoryStable], 1)
	assert.Empty(t, buckets.PerCategory[model.CategoryPrimary])
}

func TestMerge_ValidityBandBounds(t *testing.T) {
	opts := DefaultOptions()
	opts.Validity = validation.Options{MinAPY: 0, MaxAPY: 10000}

	res := AdapterResult{Adapter: "a", Records: []model.YieldRecord{
		rec("a", "KAVA", 9999.9, 100, model.CategoryPrimary),
		rec("a", "wKAVA", 10000, 100, model.CategoryPrimary),
	}}
	buckets := Merge(results(res), opts)
	require.Len(t, buckets.PerCategory[model.CategoryPrimary], 1)
	assert.Equal(t, "KAVA", buckets.PerCategory[model.CategoryPrimary][0].AssetSymbol)
}
