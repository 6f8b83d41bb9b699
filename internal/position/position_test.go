package position

import (
	"testing"

	"bitunix-trend-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCalculateProfit_LongRoundTrip(t *testing.T) {
	// 98 买入，100 卖出，1 张，零费率 -> 刚好 2.0
	pnl := CalculateProfit(98.0, 100.0, 1.0, 0, 0, true)
	assert.InDelta(t, 2.0, pnl, 1e-9)
}

func TestCalculateProfit_FeesReduceProfit(t *testing.T) {
	entryFee := 98.0 * 0.0006
	pnl := CalculateProfit(98.0, 100.0, 1.0, entryFee, 0.0006, true)
	expected := 2.0 - entryFee - 100.0*0.0006
	assert.InDelta(t, expected, pnl, 1e-9)
}

func TestCalculateProfit_ShortMirrorsLong(t *testing.T) {
	long := CalculateProfit(100.0, 98.0, 2.0, 0, 0, true)
	short := CalculateProfit(100.0, 98.0, 2.0, 0, 0, false)
	assert.InDelta(t, -long, short, 1e-9)

	// 空头在价格下跌时盈利
	assert.Positive(t, short)
}

func TestCalculateProfit_CanBeNegative(t *testing.T) {
	pnl := CalculateProfit(100.0, 90.0, 1.0, 0.1, 0.001, true)
	assert.Negative(t, pnl)
}

func TestCurrentPositionSize(t *testing.T) {
	trades := []models.Trade{
		{Qty: 1.0, FillPrice: 95.0},
		{Qty: 2.0, FillPrice: 97.0},
	}

	// 名义价值按当前价计算，与成交价无关
	assert.InDelta(t, 300.0, CurrentPositionSize(trades, 100.0), 1e-9)

	assert.Zero(t, CurrentPositionSize(nil, 100.0))
	assert.Zero(t, CurrentPositionSize(trades, 0))
}

func TestTotalPnL_RealizedPlusUnrealized(t *testing.T) {
	trades := []models.Trade{{Qty: 1.0, FillPrice: 98.0, Fee: 0}}

	total := TotalPnL(trades, -10.0, 100.0, 0, true)
	assert.InDelta(t, -8.0, total, 1e-9)

	// 没有持仓时就是已实现部分
	assert.InDelta(t, -10.0, TotalPnL(nil, -10.0, 100.0, 0, true), 1e-9)
}
