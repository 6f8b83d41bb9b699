// Package indicators contains the stateless entry-signal math: percentage
// moves between consecutive samples and a degenerate ATR computed from a
// scalar price stream (true range collapses to |price[i]-price[i-1]| when
// only last prices are available).
package indicators

import "math"

// PercentChange returns the fractional move from oldPrice to newPrice.
// A non-positive old price yields 0 rather than a division blow-up.
func PercentChange(oldPrice, newPrice float64) float64 {
	if oldPrice <= 0 {
		return 0
	}
	return (newPrice - oldPrice) / oldPrice
}

// DetectDip reports whether the fractional drop from prevPrice to
// currentPrice meets threshold, along with the observed drop magnitude.
func DetectDip(currentPrice, prevPrice, threshold float64) (bool, float64) {
	var drop float64
	if prevPrice > 0 {
		drop = (prevPrice - currentPrice) / prevPrice
	}
	return drop >= threshold, drop
}

// DetectRip reports whether the fractional rise from prevPrice to
// currentPrice meets threshold, along with the observed rise magnitude.
func DetectRip(currentPrice, prevPrice, threshold float64) (bool, float64) {
	var rise float64
	if prevPrice > 0 {
		rise = (currentPrice - prevPrice) / prevPrice
	}
	return rise >= threshold, rise
}

// CalculateATR returns the mean absolute consecutive price change over the
// last period samples. It needs period+1 prices; with fewer it returns 0,
// which callers must treat as "no signal yet", not an error.
func CalculateATR(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 0
	}

	trueRanges := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		trueRanges = append(trueRanges, math.Abs(prices[i]-prices[i-1]))
	}

	if len(trueRanges) < period {
		return 0
	}

	var sum float64
	for _, tr := range trueRanges[len(trueRanges)-period:] {
		sum += tr
	}
	return sum / float64(period)
}

// DetectDipWithATR fires when the absolute price drop meets kFactor*atr.
// Returns the drop in price units (not a fraction) for logging.
func DetectDipWithATR(currentPrice, prevPrice, atr, kFactor float64) (bool, float64) {
	drop := prevPrice - currentPrice
	return drop >= kFactor*atr, drop
}

// DetectRipWithATR fires when the absolute price rise meets kFactor*atr.
func DetectRipWithATR(currentPrice, prevPrice, atr, kFactor float64) (bool, float64) {
	rise := currentPrice - prevPrice
	return rise >= kFactor*atr, rise
}
