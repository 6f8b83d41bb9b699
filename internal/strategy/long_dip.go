package strategy

import (
	"bitunix-trend-bot-go/internal/indicators"
	"bitunix-trend-bot-go/internal/models"
	"bitunix-trend-bot-go/internal/position"
)

// LongDip enters long when the price drops sharply and exits each trade at
// a markup target above its fill price.
type LongDip struct {
	cfg    *models.Config
	window *priceWindow
}

// NewLongDip creates the long variant for cfg.
func NewLongDip(cfg *models.Config) *LongDip {
	return &LongDip{
		cfg:    cfg,
		window: newPriceWindow(cfg.Thresholds.ATRPeriod + 1),
	}
}

func (s *LongDip) Name() string { return "long-dip" }

func (s *LongDip) IsLong() bool { return true }

func (s *LongDip) EntrySide() models.Side { return models.Buy }

func (s *LongDip) ExitSide() models.Side { return models.Sell }

func (s *LongDip) EntryFeeRate() float64 { return s.cfg.Fees.Buy }

// ExitFeeRate is the sell-side rate: a long exit is a sell.
func (s *LongDip) ExitFeeRate() float64 { return s.cfg.Fees.Sell }

func (s *LongDip) CheckEntry(currentPrice, prevPrice float64) (Signal, bool) {
	s.window.push(currentPrice)

	if s.cfg.Thresholds.UseATR {
		if !s.window.full() {
			// ATR not established yet; never fire on a partial window.
			return Signal{Mode: ModeATR}, false
		}
		atr := indicators.CalculateATR(s.window.prices, s.cfg.Thresholds.ATRPeriod)
		isDip, drop := indicators.DetectDipWithATR(currentPrice, prevPrice, atr, s.cfg.Thresholds.ATRMultiplier)
		return Signal{Mode: ModeATR, Move: drop, ATR: atr}, isDip
	}

	isDip, drop := indicators.DetectDip(currentPrice, prevPrice, s.cfg.Thresholds.BuyThreshold)
	return Signal{Mode: ModePercentage, Move: drop}, isDip
}

// TargetPrice marks the exit up by the sell threshold.
func (s *LongDip) TargetPrice(fillPrice float64) float64 {
	return fillPrice * (1 + s.cfg.Thresholds.SellThreshold)
}

func (s *LongDip) ShouldExit(trade models.Trade, currentPrice float64) bool {
	return currentPrice >= trade.TargetPrice
}

func (s *LongDip) TradePnL(trade models.Trade, exitPrice, qty float64) float64 {
	return position.CalculateProfit(trade.FillPrice, exitPrice, qty, trade.Fee, s.ExitFeeRate(), true)
}

func (s *LongDip) TriggerTP(currentPrice float64) bool {
	tp := s.cfg.TakeProfit
	return tp.Enabled && tp.PriceLevel != nil && currentPrice >= *tp.PriceLevel
}

func (s *LongDip) TriggerSL(currentPrice float64) bool {
	sl := s.cfg.StopLoss
	return sl.Enabled && sl.PriceLevel != nil && currentPrice <= *sl.PriceLevel
}

func (s *LongDip) WarmUp(prices []float64) {
	s.window.seed(prices)
}
