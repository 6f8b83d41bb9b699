// Package position holds the pure PnL and exposure arithmetic. Every
// function is deterministic given identical inputs and performs no I/O.
package position

import "bitunix-trend-bot-go/internal/models"

// CalculateProfit returns the net PnL of one round trip. Gross profit is
// (exit-entry)*qty for longs and (entry-exit)*qty for shorts; the entry fee
// is an absolute amount already paid, the exit fee is charged on the exit
// notional. The result is not clamped and may be negative.
func CalculateProfit(entryPrice, exitPrice, qty, entryFee, exitFeeRate float64, isLong bool) float64 {
	exitNotional := qty * exitPrice
	entryNotional := qty * entryPrice

	var gross float64
	if isLong {
		gross = exitNotional - entryNotional
	} else {
		gross = entryNotional - exitNotional
	}

	exitFee := exitNotional * exitFeeRate
	return gross - entryFee - exitFee
}

// CurrentPositionSize returns the open exposure in quote currency: the sum
// of qty*currentPrice over all open trades. Zero when there are no trades
// or no usable price.
func CurrentPositionSize(openTrades []models.Trade, currentPrice float64) float64 {
	if len(openTrades) == 0 || currentPrice <= 0 {
		return 0
	}

	var total float64
	for _, trade := range openTrades {
		total += trade.Qty * currentPrice
	}
	return total
}

// UnrealizedPnL marks all open trades to currentPrice using each trade's
// own entry price and fee.
func UnrealizedPnL(openTrades []models.Trade, currentPrice, exitFeeRate float64, isLong bool) float64 {
	if len(openTrades) == 0 || currentPrice <= 0 {
		return 0
	}

	var total float64
	for _, trade := range openTrades {
		total += CalculateProfit(trade.FillPrice, currentPrice, trade.Qty, trade.Fee, exitFeeRate, isLong)
	}
	return total
}

// TotalPnL is realized plus unrealized.
func TotalPnL(openTrades []models.Trade, realizedPnL, currentPrice, exitFeeRate float64, isLong bool) float64 {
	return realizedPnL + UnrealizedPnL(openTrades, currentPrice, exitFeeRate, isLong)
}
