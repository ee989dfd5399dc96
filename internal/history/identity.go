// Package history persists one APY data point per pool per day and computes
// trailing-window averages over them.
package history

import (
	"strings"
	"unicode"

	"github.com/yourorg/yield-radar/internal/model"
)

// defaultLabel stands in for an absent pool label so identities stay stable
// whether or not a provider starts emitting labels.
const defaultLabel = "default"

// DeriveIdentity builds the deterministic pool key used to track one pool
// across days. Any two records meaning the same pool (same provider, same
// asset, same label) must fold to the same identity regardless of case or
// punctuation drift between runs. Label normalization happens here, before
// identity derivation, never after.
func DeriveIdentity(sourceName, assetSymbol, poolLabel string) string {
	if poolLabel == "" {
		poolLabel = defaultLabel
	}
	return fold(sourceName) + "-" + fold(assetSymbol) + "-" + fold(poolLabel)
}

// IdentityFor derives the identity for a yield record.
func IdentityFor(rec model.YieldRecord) string {
	return DeriveIdentity(rec.SourceName, rec.AssetSymbol, rec.PoolLabel)
}

// fold lowercases and strips every non-alphanumeric rune.
func fold(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
