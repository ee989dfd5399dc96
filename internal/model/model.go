// Package model defines the core data structures for yield-radar.
package model

// Category is the coarse asset class a yield opportunity belongs to.
type Category string

// Asset categories. Every record carries exactly one.
const (
	// CategoryPrimary covers the chain's native asset and its derivatives.
	CategoryPrimary Category = "primary"

	// CategoryStable covers stablecoins.
	CategoryStable Category = "stable"

	// CategorySecondary covers the BTC reserve asset and its wrapped variants.
	CategorySecondary Category = "secondary"
)

// Categories lists all categories in display order.
func Categories() []Category {
	return []Category{CategoryPrimary, CategoryStable, CategorySecondary}
}

// YieldRecord is one yield opportunity from one provider at one point in time.
// Records are created fresh on every pipeline run and never mutated after
// creation; only the (date, APYTotal) pair outlives the run, persisted to the
// historical store.
type YieldRecord struct {
	// Category is the asset class assigned by the classifier.
	Category Category `json:"category"`

	// SourceName identifies the protocol or provider the opportunity lives on.
	SourceName string `json:"source_name"`

	// SourceLink is a display-only URL for the opportunity.
	SourceLink string `json:"source_link,omitempty"`

	// AssetSymbol is the raw symbol or hyphen-joined pair, e.g. "KAVA-USDT".
	AssetSymbol string `json:"asset_symbol"`

	// PoolLabel disambiguates multiple records sharing (SourceName, AssetSymbol),
	// e.g. a vault name or pool index. Empty when the pair above is unique.
	PoolLabel string `json:"pool_label,omitempty"`

	// APYBase is the organic yield percentage, e.g. 5.2 for 5.2%.
	APYBase float64 `json:"apy_base"`

	// APYReward is the incentive yield percentage; nil when the provider
	// reports none.
	APYReward *float64 `json:"apy_reward,omitempty"`

	// APYTotal is the figure used for ranking and filtering.
	// Invariant: APYTotal ≈ APYBase + max(APYReward, 0).
	APYTotal float64 `json:"apy_total"`

	// TVL is the deposited capital backing the opportunity, in USD unless
	// TVLIsProxy is set.
	TVL float64 `json:"tvl"`

	// TVLIsProxy marks TVL values that are raw token counts rather than USD,
	// so consumers never silently compare incompatible units.
	TVLIsProxy bool `json:"tvl_is_proxy,omitempty"`

	// IsRiskFlaggedPair marks pairs excluded from the no-divergence-risk
	// buckets but still worth surfacing separately.
	IsRiskFlaggedPair bool `json:"is_risk_flagged_pair,omitempty"`
}

// RewardAPY returns the reward component, treating absent or negative
// values as zero.
func (r YieldRecord) RewardAPY() float64 {
	if r.APYReward == nil || *r.APYReward < 0 {
		return 0
	}
	return *r.APYReward
}

// Buckets is the categorized, sorted output of one aggregation pass.
type Buckets struct {
	// PerCategory holds the correlated, in-category records for each
	// category, sorted per the aggregator's ordering rules.
	PerCategory map[Category][]YieldRecord `json:"per_category"`

	// RiskFlagged holds the native-vs-stable pairs surfaced in their own
	// section instead of being silently dropped.
	RiskFlagged []YieldRecord `json:"risk_flagged"`

	// TopByAPY is the cross-category top-N list, risk-flagged excluded.
	TopByAPY []YieldRecord `json:"top_by_apy"`
}

// Empty reports whether the aggregation produced no records at all.
func (b Buckets) Empty() bool {
	for _, recs := range b.PerCategory {
		if len(recs) > 0 {
			return false
		}
	}
	return len(b.RiskFlagged) == 0
}

// Count returns the total number of records across category buckets and the
// risk-flagged section (TopByAPY is a view over the same records).
func (b Buckets) Count() int {
	n := len(b.RiskFlagged)
	for _, recs := range b.PerCategory {
		n += len(recs)
	}
	return n
}

// TotalTVL sums TVL across category buckets, skipping proxy values so the
// result stays in USD.
func (b Buckets) TotalTVL() float64 {
	var total float64
	for _, recs := range b.PerCategory {
		for _, r := range recs {
			if !r.TVLIsProxy {
				total += r.TVL
			}
		}
	}
	return total
}
