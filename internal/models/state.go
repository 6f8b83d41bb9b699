package models

import "time"

// Trade 代表一笔已成交的开仓，等待达到目标价后平仓
type Trade struct {
	Qty         float64   `json:"qty"`          // 成交数量（基础货币）
	FillPrice   float64   `json:"fill_price"`   // 开仓成交价
	Fee         float64   `json:"fee_usdt"`     // 开仓手续费 (USDT)
	TargetPrice float64   `json:"target_price"` // 平仓目标价
	OrderID     string    `json:"order_id"`     // 交易所订单ID
	CreatedAt   time.Time `json:"created_at"`   // 开仓时间
}

// BotState 定义了需要持久化的所有关键数据。
// OpenTrades is ordered oldest-first; exits are attempted FIFO.
// OpenTrades and TotalRealizedPnL are always persisted together so a
// recovery snapshot can never pair trades with a stale PnL.
type BotState struct {
	BotID            string    `json:"bot_id"`
	Symbol           string    `json:"symbol"`
	OpenTrades       []Trade   `json:"open_trades"`
	TotalRealizedPnL float64   `json:"total_realized_pnl"`
	LastUpdated      time.Time `json:"last_updated"`
}

// NewBotState returns the empty state used when nothing has been persisted
// yet. An absent state file is normal, not an error.
func NewBotState(botID, symbol string) *BotState {
	return &BotState{
		BotID:      botID,
		Symbol:     symbol,
		OpenTrades: make([]Trade, 0),
	}
}

// Clone returns a deep copy safe for concurrent reading and persistence.
func (s *BotState) Clone() *BotState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.OpenTrades = make([]Trade, len(s.OpenTrades))
	copy(cp.OpenTrades, s.OpenTrades)
	return &cp
}
