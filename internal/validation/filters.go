// Package validation provides the data-validity filters applied to
// normalized yield records before bucketing.
package validation

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/yield-radar/internal/model"
)

// Options holds configuration for the validity pass.
type Options struct {
	// MaxAPY is the exclusive upper bound of the plausible yield band,
	// as a percentage. Values at or beyond it are data errors, not yields.
	MaxAPY float64

	// MinAPY is the exclusive lower bound; zero and negative yields carry
	// no information.
	MinAPY float64
}

// DefaultOptions returns the validity band used across the pipeline:
// 0 < apyTotal < 10000.
func DefaultOptions() Options {
	return Options{
		MaxAPY: 10000,
		MinAPY: 0,
	}
}

// FilterInvalid removes records that fail the validity band with the
// default options. Out-of-band values are expected provider noise and are
// dropped silently at debug level, not surfaced as errors.
func FilterInvalid(records []model.YieldRecord) []model.YieldRecord {
	return FilterInvalidWithOptions(records, DefaultOptions())
}

// FilterInvalidWithOptions removes records that fail the validity band.
func FilterInvalidWithOptions(records []model.YieldRecord, opts Options) []model.YieldRecord {
	valid := make([]model.YieldRecord, 0, len(records))
	for _, rec := range records {
		if IsValid(rec, opts) {
			valid = append(valid, rec)
			continue
		}
		logrus.WithFields(logrus.Fields{
			"source": rec.SourceName,
			"symbol": rec.AssetSymbol,
			"apy":    rec.APYTotal,
			"tvl":    rec.TVL,
		}).Debug("Dropped out-of-band record")
	}
	return valid
}

// IsValid checks a single record against the validity band.
func IsValid(rec model.YieldRecord, opts Options) bool {
	if math.IsNaN(rec.APYTotal) || math.IsInf(rec.APYTotal, 0) {
		return false
	}
	if rec.APYTotal <= opts.MinAPY || rec.APYTotal >= opts.MaxAPY {
		return false
	}
	if math.IsNaN(rec.TVL) || math.IsInf(rec.TVL, 0) || rec.TVL < 0 {
		return false
	}
	if rec.SourceName == "" || rec.AssetSymbol == "" {
		return false
	}
	return true
}
