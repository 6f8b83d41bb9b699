// Package risk implements admission control for new entries and the
// bot-level PnL stop.
package risk

import "fmt"

// Manager is a stateless policy object. The trade counter it judges is
// owned by the engine and reset on a fixed 60-second wall-clock window, not
// a true sliding window; bursts across a window boundary can briefly exceed
// the nominal per-minute rate.
type Manager struct {
	maxTradesPerMinute int
	positionSizeLimit  float64
	botStopLoss        *float64 // cumulative-PnL floor; nil disables the stop
}

// NewManager creates a Manager. botStopLoss may be nil when no bot-level
// stop loss is configured.
func NewManager(maxTradesPerMinute int, positionSizeLimit float64, botStopLoss *float64) *Manager {
	return &Manager{
		maxTradesPerMinute: maxTradesPerMinute,
		positionSizeLimit:  positionSizeLimit,
		botStopLoss:        botStopLoss,
	}
}

// CanOpenNewTrade gates an entry. The trade-rate check runs first so a full
// window always denies regardless of position size.
func (m *Manager) CanOpenNewTrade(currentPositionSize float64, tradesThisWindow int) (bool, string) {
	if tradesThisWindow >= m.maxTradesPerMinute {
		return false, fmt.Sprintf("max trades per minute reached (%d)", m.maxTradesPerMinute)
	}

	if currentPositionSize >= m.positionSizeLimit {
		return false, fmt.Sprintf("position size limit reached: $%.2f >= $%.2f",
			currentPositionSize, m.positionSizeLimit)
	}

	return true, "OK"
}

// ShouldStopBot reports whether the cumulative PnL has fallen to or below
// the configured floor. The boundary is inclusive.
func (m *Manager) ShouldStopBot(totalPnL float64) (bool, string) {
	if m.botStopLoss == nil {
		return false, "no bot stop loss set"
	}

	if totalPnL <= *m.botStopLoss {
		return true, fmt.Sprintf("bot stop loss hit: PnL $%.6f <= $%.6f", totalPnL, *m.botStopLoss)
	}

	return false, "OK"
}
