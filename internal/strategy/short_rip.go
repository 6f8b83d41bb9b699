package strategy

import (
	"bitunix-trend-bot-go/internal/indicators"
	"bitunix-trend-bot-go/internal/models"
	"bitunix-trend-bot-go/internal/position"
)

// ShortRip enters short when the price rises sharply and exits each trade
// at a markdown target below its fill price.
type ShortRip struct {
	cfg    *models.Config
	window *priceWindow
}

// NewShortRip creates the short variant for cfg.
func NewShortRip(cfg *models.Config) *ShortRip {
	return &ShortRip{
		cfg:    cfg,
		window: newPriceWindow(cfg.Thresholds.ATRPeriod + 1),
	}
}

func (s *ShortRip) Name() string { return "short-rip" }

func (s *ShortRip) IsLong() bool { return false }

func (s *ShortRip) EntrySide() models.Side { return models.Sell }

func (s *ShortRip) ExitSide() models.Side { return models.Buy }

func (s *ShortRip) EntryFeeRate() float64 { return s.cfg.Fees.Sell }

// ExitFeeRate is the buy-side rate: a short exit is a buy-back.
func (s *ShortRip) ExitFeeRate() float64 { return s.cfg.Fees.Buy }

func (s *ShortRip) CheckEntry(currentPrice, prevPrice float64) (Signal, bool) {
	s.window.push(currentPrice)

	if s.cfg.Thresholds.UseATR {
		if !s.window.full() {
			return Signal{Mode: ModeATR}, false
		}
		atr := indicators.CalculateATR(s.window.prices, s.cfg.Thresholds.ATRPeriod)
		isRip, rise := indicators.DetectRipWithATR(currentPrice, prevPrice, atr, s.cfg.Thresholds.ATRMultiplier)
		return Signal{Mode: ModeATR, Move: rise, ATR: atr}, isRip
	}

	isRip, rise := indicators.DetectRip(currentPrice, prevPrice, s.cfg.Thresholds.SellThreshold)
	return Signal{Mode: ModePercentage, Move: rise}, isRip
}

// TargetPrice marks the exit down by the buy threshold.
func (s *ShortRip) TargetPrice(fillPrice float64) float64 {
	return fillPrice * (1 - s.cfg.Thresholds.BuyThreshold)
}

func (s *ShortRip) ShouldExit(trade models.Trade, currentPrice float64) bool {
	return currentPrice <= trade.TargetPrice
}

func (s *ShortRip) TradePnL(trade models.Trade, exitPrice, qty float64) float64 {
	return position.CalculateProfit(trade.FillPrice, exitPrice, qty, trade.Fee, s.ExitFeeRate(), false)
}

// TriggerTP fires below the level: a short profits as the price falls.
func (s *ShortRip) TriggerTP(currentPrice float64) bool {
	tp := s.cfg.TakeProfit
	return tp.Enabled && tp.PriceLevel != nil && currentPrice <= *tp.PriceLevel
}

func (s *ShortRip) TriggerSL(currentPrice float64) bool {
	sl := s.cfg.StopLoss
	return sl.Enabled && sl.PriceLevel != nil && currentPrice >= *sl.PriceLevel
}

func (s *ShortRip) WarmUp(prices []float64) {
	s.window.seed(prices)
}
