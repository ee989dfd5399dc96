package fetch

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// AprToApy converts a simple annualized rate to a compounded yield, both as
// percentages, assuming daily compounding over 365 days.
func AprToApy(apr float64) float64 {
	if apr == 0 {
		return 0
	}
	return (math.Pow(1+apr/100/365, 365) - 1) * 100
}

// DecodeRate decodes a fixed-point on-chain integer into a percentage.
// The integer represents the percentage directly, scaled by 10^decimals,
// not a fractional rate, so the only operation is shifting the point left.
func DecodeRate(value *big.Int, decimals int32) float64 {
	if value == nil {
		return 0
	}
	rate, _ := decimal.NewFromBigInt(value, -decimals).Float64()
	return rate
}
