package strategy

import (
	"testing"

	"bitunix-trend-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func baseConfig(botType string) *models.Config {
	return &models.Config{
		BotID:   "test-bot",
		BotType: botType,
		TradingParams: models.TradingParams{
			Symbol:   "BTCUSDT",
			Quantity: 1,
		},
		Thresholds: models.Thresholds{
			BuyThreshold:       0.02,
			SellThreshold:      0.02,
			MaxTradesPerMinute: 5,
			PositionSizeLimit:  10000,
			ATRPeriod:          3,
			ATRMultiplier:      1.5,
		},
		Fees: models.Fees{Buy: 0.0006, Sell: 0.0006},
	}
}

func TestNew_SelectsVariantByBotType(t *testing.T) {
	assert.Equal(t, "long-dip", New(baseConfig("LONG")).Name())
	assert.Equal(t, "long-dip", New(baseConfig("TREND_LONG")).Name())
	assert.Equal(t, "short-rip", New(baseConfig("SHORT")).Name())
	assert.Equal(t, "short-rip", New(baseConfig("TREND_SHORT")).Name())

	// 未指定类型时默认做多
	assert.Equal(t, "long-dip", New(baseConfig("")).Name())
}

func TestLongDip_PercentageEntry(t *testing.T) {
	s := NewLongDip(baseConfig("LONG"))

	sig, fired := s.CheckEntry(98.0, 100.0) // 2% 下跌
	require.True(t, fired)
	assert.Equal(t, ModePercentage, sig.Mode)
	assert.InDelta(t, 0.02, sig.Move, 1e-9)

	_, fired = s.CheckEntry(99.0, 100.0) // 1% 不够
	assert.False(t, fired)

	_, fired = s.CheckEntry(102.0, 100.0) // 上涨不入场
	assert.False(t, fired)
}

func TestLongDip_TargetAndExit(t *testing.T) {
	s := NewLongDip(baseConfig("LONG"))

	target := s.TargetPrice(98.0)
	assert.InDelta(t, 99.96, target, 1e-9)

	trade := models.Trade{Qty: 1, FillPrice: 98.0, TargetPrice: target}
	assert.False(t, s.ShouldExit(trade, 99.95))
	assert.True(t, s.ShouldExit(trade, 99.96))
	assert.True(t, s.ShouldExit(trade, 100.0))
}

func TestLongDip_Sides(t *testing.T) {
	cfg := baseConfig("LONG")
	cfg.Fees = models.Fees{Buy: 0.0002, Sell: 0.0006}
	s := NewLongDip(cfg)

	assert.Equal(t, models.Buy, s.EntrySide())
	assert.Equal(t, models.Sell, s.ExitSide())
	assert.InDelta(t, 0.0002, s.EntryFeeRate(), 1e-12)
	assert.InDelta(t, 0.0006, s.ExitFeeRate(), 1e-12)
	assert.True(t, s.IsLong())
}

func TestLongDip_Triggers(t *testing.T) {
	cfg := baseConfig("LONG")
	cfg.TakeProfit = models.PriceTrigger{Enabled: true, PriceLevel: floatPtr(110.0)}
	cfg.StopLoss = models.StopLoss{Enabled: true, PriceLevel: floatPtr(90.0)}
	s := NewLongDip(cfg)

	assert.True(t, s.TriggerTP(110.0))
	assert.True(t, s.TriggerTP(111.0))
	assert.False(t, s.TriggerTP(109.9))

	assert.True(t, s.TriggerSL(90.0))
	assert.True(t, s.TriggerSL(89.0))
	assert.False(t, s.TriggerSL(90.1))

	// 未启用时永不触发
	off := NewLongDip(baseConfig("LONG"))
	assert.False(t, off.TriggerTP(1e9))
	assert.False(t, off.TriggerSL(0.0001))
}

func TestLongDip_ATRModeSilentUntilWindowFull(t *testing.T) {
	cfg := baseConfig("LONG")
	cfg.Thresholds.UseATR = true
	s := NewLongDip(cfg)

	// period=3 -> 需要 4 个样本；巨大下跌在窗口未满前也不触发
	prices := []float64{100, 90, 80}
	prev := 110.0
	for _, p := range prices {
		_, fired := s.CheckEntry(p, prev)
		assert.False(t, fired, "price %v fired before window was full", p)
		prev = p
	}

	// 第 4 个样本窗口满，ATR=(10+10+30)/3，50 相对 80 跌了 30 > 1.5*ATR
	sig, fired := s.CheckEntry(50.0, 80.0)
	assert.True(t, fired)
	assert.Equal(t, ModeATR, sig.Mode)
	assert.InDelta(t, 50.0/3.0, sig.ATR, 1e-9)
	assert.InDelta(t, 30.0, sig.Move, 1e-9)
}

func TestLongDip_WarmUpArmsATRImmediately(t *testing.T) {
	cfg := baseConfig("LONG")
	cfg.Thresholds.UseATR = true
	s := NewLongDip(cfg)

	s.WarmUp([]float64{100, 101, 99, 100})

	// 窗口已满，第一笔实时样本即可判定
	sig, fired := s.CheckEntry(90.0, 100.0)
	assert.True(t, fired)
	assert.Equal(t, ModeATR, sig.Mode)
}

func TestShortRip_PercentageEntry(t *testing.T) {
	s := NewShortRip(baseConfig("SHORT"))

	sig, fired := s.CheckEntry(102.0, 100.0) // 2% 上涨
	require.True(t, fired)
	assert.Equal(t, ModePercentage, sig.Mode)
	assert.InDelta(t, 0.02, sig.Move, 1e-9)

	_, fired = s.CheckEntry(98.0, 100.0) // 下跌不入场
	assert.False(t, fired)
}

func TestShortRip_TargetAndExit(t *testing.T) {
	s := NewShortRip(baseConfig("SHORT"))

	// 空头目标价在成交价下方
	target := s.TargetPrice(100.0)
	assert.InDelta(t, 98.0, target, 1e-9)

	trade := models.Trade{Qty: 1, FillPrice: 100.0, TargetPrice: target}
	assert.False(t, s.ShouldExit(trade, 98.5))
	assert.True(t, s.ShouldExit(trade, 98.0))
	assert.True(t, s.ShouldExit(trade, 97.0))
}

func TestShortRip_Sides(t *testing.T) {
	cfg := baseConfig("SHORT")
	cfg.Fees = models.Fees{Buy: 0.0002, Sell: 0.0006}
	s := NewShortRip(cfg)

	assert.Equal(t, models.Sell, s.EntrySide())
	assert.Equal(t, models.Buy, s.ExitSide())
	assert.InDelta(t, 0.0006, s.EntryFeeRate(), 1e-12)
	assert.InDelta(t, 0.0002, s.ExitFeeRate(), 1e-12)
	assert.False(t, s.IsLong())
}

func TestShortRip_Triggers(t *testing.T) {
	cfg := baseConfig("SHORT")
	cfg.TakeProfit = models.PriceTrigger{Enabled: true, PriceLevel: floatPtr(90.0)}
	cfg.StopLoss = models.StopLoss{Enabled: true, PriceLevel: floatPtr(110.0)}
	s := NewShortRip(cfg)

	// 空头止盈在下方，止损在上方
	assert.True(t, s.TriggerTP(90.0))
	assert.False(t, s.TriggerTP(90.1))
	assert.True(t, s.TriggerSL(110.0))
	assert.False(t, s.TriggerSL(109.9))
}

func TestShortRip_TradePnL(t *testing.T) {
	s := NewShortRip(baseConfig("SHORT"))

	trade := models.Trade{Qty: 1, FillPrice: 100.0, Fee: 0}
	// 空头 100 -> 98 为盈利，扣平仓费(买方费率)
	pnl := s.TradePnL(trade, 98.0, 1.0)
	assert.InDelta(t, 2.0-98.0*0.0006, pnl, 1e-9)
}
