package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yourorg/yield-radar/internal/model"
)

func testBuckets() model.Buckets {
	kava := model.YieldRecord{
		Category:    model.CategoryPrimary,
		SourceName:  "rise",
		SourceLink:  "https://app.rise.example/rewards",
		AssetSymbol: "KAVA",
		PoolLabel:   "Staking",
		APYTotal:    8.1,
		TVL:         1_200_000,
	}
	usdt := model.YieldRecord{
		Category:    model.CategoryStable,
		SourceName:  "hover",
		AssetSymbol: "USDT",
		APYTotal:    4.25,
		TVL:         950_000,
	}
	risky := model.YieldRecord{
		Category:          model.CategoryPrimary,
		SourceName:        "beefy",
		AssetSymbol:       "KAVA-USDT",
		APYTotal:          31.7,
		TVL:               400_000,
		IsRiskFlaggedPair: true,
	}
	return model.Buckets{
		PerCategory: map[model.Category][]model.YieldRecord{
			model.CategoryPrimary: {kava},
			model.CategoryStable:  {usdt},
		},
		RiskFlagged: []model.YieldRecord{risky},
		TopByAPY:    []model.YieldRecord{kava, usdt},
	}
}

func TestFormat_SectionsAndEscaping(t *testing.T) {
	f := NewFormatter("Kava Yield Radar")
	msg := f.Format(testBuckets(), time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))

	assert.Contains(t, msg, "*Kava Yield Radar*")
	assert.Contains(t, msg, "2026\\-08\\-31 12:00 UTC")
	assert.Contains(t, msg, "*🪙 Kava Assets*")
	assert.Contains(t, msg, "*💵 Stablecoins*")
	assert.Contains(t, msg, "*⚠️ Higher Risk Pairs*")
	assert.Contains(t, msg, "*🏆 Top Yields*")

	assert.Contains(t, msg, "[KAVA Staking @ rise](https://app.rise.example/rewards)")
	assert.Contains(t, msg, "*8\\.10%*")
	assert.Contains(t, msg, "$1\\.2M")
	assert.Contains(t, msg, "KAVA\\-USDT @ beefy")
}

func TestFormat_EmptyCategoriesOmitted(t *testing.T) {
	f := NewFormatter("Radar")
	buckets := model.Buckets{
		PerCategory: map[model.Category][]model.YieldRecord{
			model.CategoryStable: {{
				Category:    model.CategoryStable,
				SourceName:  "hover",
				AssetSymbol: "USDC",
				APYTotal:    3.0,
				TVL:         100,
			}},
		},
	}
	msg := f.Format(buckets, time.Now())

	assert.NotContains(t, msg, "Kava Assets")
	assert.NotContains(t, msg, "BTC Assets")
	assert.NotContains(t, msg, "Top Yields")
	assert.Contains(t, msg, "Stablecoins")
}

func TestFormat_TrailingAverages(t *testing.T) {
	f := NewFormatter("Radar").WithAverages(func(identity string) (float64, bool) {
		if identity == "rise-kava-staking" {
			return 7.95, true
		}
		return 0, false
	})
	msg := f.Format(testBuckets(), time.Now())

	assert.Contains(t, msg, "7d avg 7\\.95%")
	// usdt pool has no history yet
	assert.Equal(t, 1, strings.Count(msg, "7d avg"))
}

func TestFormat_ProxyTVLAnnotated(t *testing.T) {
	f := NewFormatter("Radar")
	buckets := model.Buckets{
		PerCategory: map[model.Category][]model.YieldRecord{
			model.CategoryPrimary: {{
				Category:    model.CategoryPrimary,
				SourceName:  "kinetix",
				AssetSymbol: "stKAVA",
				APYTotal:    9.4,
				TVL:         52_000,
				TVLIsProxy:  true,
			}},
		},
	}
	msg := f.Format(buckets, time.Now())
	assert.Contains(t, msg, "\\~$52\\.0K")
}

func TestFormatTVL(t *testing.T) {
	assert.Equal(t, "$2.4B", formatTVL(2_400_000_000, false))
	assert.Equal(t, "$1.2M", formatTVL(1_200_000, false))
	assert.Equal(t, "$9.5K", formatTVL(9_500, false))
	assert.Equal(t, "$42", formatTVL(42, false))
	assert.Equal(t, "~$500", formatTVL(500, true))
}

func TestEscapeMarkdownV2(t *testing.T) {
	assert.Equal(t, "a\\.b\\-c\\!", escapeMarkdownV2("a.b-c!"))
	assert.Equal(t, "plain text", escapeMarkdownV2("plain text"))
	assert.Equal(t, "\\*\\[\\]\\(\\)", escapeMarkdownV2("*[]()"))
}
