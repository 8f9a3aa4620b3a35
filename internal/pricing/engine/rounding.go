package engine

import "github.com/shopspring/decimal"

// Yen has no subunits; every intermediate amount lands on a whole yen
// using round-half-up, never banker's rounding.
func roundHalfUpYen(d decimal.Decimal) int64 {
	// decimal.Round rounds half away from zero, which is half-up for
	// the non-negative amounts this engine produces.
	return d.Round(0).IntPart()
}

func floorYen(d decimal.Decimal) int64 {
	return d.Floor().IntPart()
}

var (
	taxRateStandard = decimal.NewFromFloat(0.10)
	ticketDivisor   = decimal.NewFromFloat(3.3)
)
