package models

import (
	"crypto/rand"
	"fmt"

	"github.com/jxskiss/base62"
)

// Side 定义了交易方向的类型
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the opposing order side, used when closing a position.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// TradeSide distinguishes opening from closing orders on exchanges that
// require it (hedge-mode position accounting).
type TradeSide string

const (
	TradeSideOpen  TradeSide = "OPEN"
	TradeSideClose TradeSide = "CLOSE"
)

// BotStatus describes where the engine is in its lifecycle.
type BotStatus string

const (
	StatusInitializing    BotStatus = "INITIALIZING"
	StatusRunning         BotStatus = "RUNNING"
	StatusExitingOnSignal BotStatus = "EXITING_ON_SIGNAL"
	StatusExitingOnError  BotStatus = "EXITING_ON_ERROR"
	StatusStopped         BotStatus = "STOPPED"
)

// LotSizeFilter 定义了交易所对下单数量的限制规则
type LotSizeFilter struct {
	MinQty  float64 `json:"minOrderQty"`
	QtyStep float64 `json:"qtyStep"`
}

// Position 定义了交易所返回的持仓信息
type Position struct {
	PositionID string  `json:"positionId,omitempty"`
	Symbol     string  `json:"symbol"`
	Qty        float64 `json:"qty"`
	Side       Side    `json:"side"`
}

// OrderRequest carries everything needed to place one order.
type OrderRequest struct {
	Symbol        string
	Side          Side
	Qty           float64
	OrderType     string // "MARKET" or "LIMIT"
	Price         float64
	TradeSide     TradeSide // optional: OPEN/CLOSE
	PositionID    string    // optional: close by position id
	ReduceOnly    bool
	ClientOrderID string
}

// OrderResult is the acknowledged outcome of a successfully placed order.
type OrderResult struct {
	OrderID   string  `json:"orderId"`
	FilledQty float64 `json:"qty"`
}

// Error 定义了交易所API返回的错误结构
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("exchange error, code: %d, msg: %s", e.Code, e.Msg)
}

// NewTradeID returns a short random identifier used as the client order id
// for entries, so fills can be correlated across restarts.
func NewTradeID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "t0"
	}
	return base62.EncodeToString(buf)
}
