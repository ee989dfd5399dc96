// Package classify maps raw asset symbols to coarse categories and decides
// whether multi-asset pools carry price-divergence risk.
package classify

import (
	"strings"
	"unicode"

	"github.com/yourorg/yield-radar/internal/model"
)

// Identifier lists per category. Matching is substring-based over a folded
// symbol, and the order stable -> secondary -> primary is significant:
// a wrapped stable referencing BTC in its name must still classify as stable.
var (
	stableIdentifiers = []string{
		"usdt", "usdc", "usdx", "dai", "frax", "mim", "tusd", "busd", "usd",
	}

	secondaryIdentifiers = []string{"btc"}
)

// Per-category asset lists used for pair membership checks. Unlike the
// general classifier these are exact token matches, so "KAVAX" does not
// sneak into the primary bucket via substring.
var categoryAssets = map[model.Category][]string{
	model.CategoryPrimary:   {"kava", "wkava", "stkava", "bkava"},
	model.CategoryStable:    {"usdt", "usdc", "usdx", "dai", "frax", "mim", "tusd", "busd"},
	model.CategorySecondary: {"btc", "wbtc", "btcb"},
}

// correlatedPairs lists the known low-divergence pairs per category:
// the native asset against its wrapped and liquid-staked derivatives,
// stablecoin-to-stablecoin, and the reserve asset against its wrappers.
// Lookup matches in either order.
var correlatedPairs = map[model.Category][][2]string{
	model.CategoryPrimary: {
		{"kava", "wkava"},
		{"kava", "stkava"},
		{"kava", "bkava"},
		{"wkava", "stkava"},
	},
	model.CategoryStable: {
		{"usdt", "usdc"},
		{"usdt", "usdx"},
		{"usdc", "usdx"},
		{"usdt", "dai"},
		{"usdc", "dai"},
	},
	model.CategorySecondary: {
		{"btc", "wbtc"},
		{"wbtc", "btcb"},
	},
}

// nonAssetTokens are suffix tokens providers embed in multi-part vault
// names, e.g. "KAVA-USDT-VAULT7". Stripped before pair parsing.
var nonAssetTokens = map[string]bool{
	"vault": true,
	"pool":  true,
	"lp":    true,
	"v1":    true,
	"v2":    true,
	"v3":    true,
}

// nativeAsset and dominantStable define the one cross-category pair pattern
// surfaced as risk-flagged instead of silently dropped.
const (
	nativeAsset    = "kava"
	dominantStable = "usdt"
)

// fold lowercases a symbol and strips everything non-alphanumeric.
func fold(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Classify maps a free-text asset symbol to exactly one category.
// It is total: unknown symbols default to the primary category.
func Classify(symbol string) model.Category {
	folded := fold(symbol)
	for _, id := range stableIdentifiers {
		if strings.Contains(folded, id) {
			return model.CategoryStable
		}
	}
	for _, id := range secondaryIdentifiers {
		if strings.Contains(folded, id) {
			return model.CategorySecondary
		}
	}
	return model.CategoryPrimary
}

// IsSingleAsset reports whether the symbol contains no pair separator.
func IsSingleAsset(symbol string) bool {
	return !strings.ContainsAny(symbol, "-/")
}

// ParseLPPair splits a pair symbol into its two asset tokens.
//
// A 2-part symbol splits directly. For 3+ parts, known non-asset suffix
// tokens (vault/pool/index markers, bare numerals) are stripped and the
// first two surviving distinct tokens are returned. ok is false when fewer
// than two asset tokens survive.
func ParseLPPair(symbol string) (first, second string, ok bool) {
	parts := strings.FieldsFunc(symbol, func(r rune) bool {
		return r == '-' || r == '/'
	})
	if len(parts) < 2 {
		return "", "", false
	}
	if len(parts) == 2 {
		a, b := fold(parts[0]), fold(parts[1])
		if a == "" || b == "" {
			return "", "", false
		}
		return a, b, true
	}

	var assets []string
	for _, p := range parts {
		token := fold(p)
		if token == "" || isNumeral(token) || isNonAssetToken(token) {
			continue
		}
		if len(assets) > 0 && assets[len(assets)-1] == token {
			continue
		}
		assets = append(assets, token)
		if len(assets) == 2 {
			break
		}
	}
	if len(assets) < 2 {
		return "", "", false
	}
	return assets[0], assets[1], true
}

// isNumeral reports whether the token is digits only.
func isNumeral(token string) bool {
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(token) > 0
}

// isNonAssetToken matches vault/pool markers, including numbered variants
// like "vault7".
func isNonAssetToken(token string) bool {
	if nonAssetTokens[token] {
		return true
	}
	trimmed := strings.TrimRightFunc(token, unicode.IsDigit)
	return trimmed != token && nonAssetTokens[trimmed]
}

// PairBelongsToCategory reports whether both assets of a pair independently
// belong to the given category's asset list. Single assets trivially belong
// to whatever Classify assigns them, so this only gates pairs.
func PairBelongsToCategory(symbol string, category model.Category) bool {
	if IsSingleAsset(symbol) {
		return Classify(symbol) == category
	}
	a, b, ok := ParseLPPair(symbol)
	if !ok {
		return false
	}
	return assetInCategory(a, category) && assetInCategory(b, category)
}

func assetInCategory(asset string, category model.Category) bool {
	for _, known := range categoryAssets[category] {
		if asset == known {
			return true
		}
	}
	return false
}

// IsCorrelatedPair reports whether a symbol carries no divergence risk.
// Single assets are always correlated. Pairs are checked against the fixed
// per-category table, in either order.
func IsCorrelatedPair(symbol string, category model.Category) bool {
	if IsSingleAsset(symbol) {
		return true
	}
	a, b, ok := ParseLPPair(symbol)
	if !ok {
		return false
	}
	for _, pair := range correlatedPairs[category] {
		if (a == pair[0] && b == pair[1]) || (a == pair[1] && b == pair[0]) {
			return true
		}
	}
	return false
}

// IsRiskFlaggedPair reports whether a pair matches the native-vs-dominant-
// stable pattern that gets its own report section.
func IsRiskFlaggedPair(symbol string) bool {
	if IsSingleAsset(symbol) {
		return false
	}
	a, b, ok := ParseLPPair(symbol)
	if !ok {
		return false
	}
	return (a == nativeAsset && b == dominantStable) ||
		(a == dominantStable && b == nativeAsset)
}
