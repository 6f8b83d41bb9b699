// Package strategy defines the directional entry/exit policy the engine
// drives. The variant set is closed: LongDip buys into sharp drops and
// sells at a markup target, ShortRip sells into sharp rises and buys back
// at a markdown target. Variants hold no shared mutable state; each owns
// its own rolling price window for ATR detection.
package strategy

import (
	"bitunix-trend-bot-go/internal/models"
)

// SignalMode identifies which detector produced an entry signal.
type SignalMode string

const (
	ModePercentage SignalMode = "percentage"
	ModeATR        SignalMode = "atr"
)

// Signal carries the diagnostics of an entry decision: the observed move
// (a fraction in percentage mode, price units in ATR mode) and the ATR in
// effect when ATR mode decided.
type Signal struct {
	Mode SignalMode
	Move float64
	ATR  float64
}

// Strategy is the variant contract consumed by the engine.
type Strategy interface {
	// Name identifies the variant in logs.
	Name() string

	// IsLong reports the directionality flag used in PnL math.
	IsLong() bool

	// EntrySide and ExitSide are the order sides for opening and closing.
	EntrySide() models.Side
	ExitSide() models.Side

	// EntryFeeRate and ExitFeeRate are the per-side fee rates in effect.
	EntryFeeRate() float64
	ExitFeeRate() float64

	// CheckEntry records the current price sample and reports whether it
	// constitutes an entry opportunity against the previous one. In ATR
	// mode no signal fires until the rolling window holds period+1 samples.
	CheckEntry(currentPrice, prevPrice float64) (Signal, bool)

	// TargetPrice computes a trade's exit target from its fill price.
	TargetPrice(fillPrice float64) float64

	// ShouldExit reports whether the price has reached the trade's target.
	ShouldExit(trade models.Trade, currentPrice float64) bool

	// TradePnL computes the realized PnL of closing qty of trade at exitPrice.
	TradePnL(trade models.Trade, exitPrice, qty float64) float64

	// TriggerTP and TriggerSL check the absolute take-profit and stop-loss
	// levels. They return false when the corresponding level is disabled.
	TriggerTP(currentPrice float64) bool
	TriggerSL(currentPrice float64) bool

	// WarmUp seeds the rolling price window from historical closes so ATR
	// mode can be armed before the first live sample.
	WarmUp(prices []float64)
}

// New selects the variant for cfg. The set is closed by design: anything
// that is not a short bot is a long bot.
func New(cfg *models.Config) Strategy {
	if cfg.IsLong() {
		return NewLongDip(cfg)
	}
	return NewShortRip(cfg)
}

// priceWindow is the fixed-length rolling history shared by both variants.
// It keeps at most capacity samples, dropping the oldest.
type priceWindow struct {
	prices   []float64
	capacity int
}

func newPriceWindow(capacity int) *priceWindow {
	return &priceWindow{capacity: capacity}
}

func (w *priceWindow) push(price float64) {
	w.prices = append(w.prices, price)
	if len(w.prices) > w.capacity {
		w.prices = w.prices[1:]
	}
}

func (w *priceWindow) full() bool {
	return len(w.prices) >= w.capacity
}

func (w *priceWindow) seed(prices []float64) {
	for _, p := range prices {
		if p > 0 {
			w.push(p)
		}
	}
}
