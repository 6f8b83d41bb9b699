package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func validConfig() *Config {
	return &Config{
		BotID:   "bot-1",
		BotType: "LONG",
		TradingParams: TradingParams{
			Symbol:   "BTCUSDT",
			Quantity: 0.01,
		},
		Thresholds: Thresholds{
			BuyThreshold:       0.02,
			SellThreshold:      0.02,
			MaxTradesPerMinute: 3,
			PositionSizeLimit:  1000,
		},
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	mutations := map[string]func(*Config){
		"missing botId":       func(c *Config) { c.BotID = "" },
		"missing symbol":      func(c *Config) { c.TradingParams.Symbol = "" },
		"zero quantity":       func(c *Config) { c.TradingParams.Quantity = 0 },
		"negative quantity":   func(c *Config) { c.TradingParams.Quantity = -1 },
		"unknown botType":     func(c *Config) { c.BotType = "GRID" },
		"zero trade rate":     func(c *Config) { c.Thresholds.MaxTradesPerMinute = 0 },
		"zero size limit":     func(c *Config) { c.Thresholds.PositionSizeLimit = 0 },
		"negative threshold":  func(c *Config) { c.Thresholds.BuyThreshold = -0.01 },
		"ATR without period":  func(c *Config) { c.Thresholds.UseATR = true },
		"TP without level":    func(c *Config) { c.TakeProfit = PriceTrigger{Enabled: true} },
		"SL without level":    func(c *Config) { c.StopLoss = StopLoss{Enabled: true} },
		"negative fee":        func(c *Config) { c.Fees.Buy = -0.001 },
		"unknown persistence": func(c *Config) { c.Persistence.Backend = "redis" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigValidate_ATRComplete(t *testing.T) {
	cfg := validConfig()
	cfg.Thresholds.UseATR = true
	cfg.Thresholds.ATRPeriod = 14
	cfg.Thresholds.ATRMultiplier = 1.5
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate_TriggersWithLevels(t *testing.T) {
	cfg := validConfig()
	cfg.TakeProfit = PriceTrigger{Enabled: true, PriceLevel: floatPtr(110)}
	cfg.StopLoss = StopLoss{Enabled: true, PriceLevel: floatPtr(90), BotStopLoss: floatPtr(-50)}
	assert.NoError(t, cfg.Validate())
}

func TestConfigIsLong(t *testing.T) {
	for botType, isLong := range map[string]bool{
		"LONG": true, "TREND_LONG": true, "": true,
		"SHORT": false, "TREND_SHORT": false,
	} {
		cfg := validConfig()
		cfg.BotType = botType
		assert.Equal(t, isLong, cfg.IsLong(), "botType=%q", botType)
	}
}

func TestRegimeAllows(t *testing.T) {
	cases := []struct {
		regime  MarketRegime
		botType string
		allowed bool
	}{
		{"", "LONG", true}, // 未标注市场状态时不设门槛
		{"", "SHORT", true},
		{RegimeUptrend, "LONG", true},
		{RegimeUptrend, "SHORT", false},
		{RegimeDowntrend, "LONG", false},
		{RegimeDowntrend, "SHORT", true},
		{RegimeRange, "LONG", true},
		{RegimeRange, "SHORT", true},
		{RegimeUnknown, "LONG", false}, // UNKNOWN 两个方向都不放行
		{RegimeUnknown, "SHORT", false},
		{"uptrend", "LONG", true}, // 大小写不敏感
	}

	for _, tc := range cases {
		cfg := validConfig()
		cfg.ManualRegime = tc.regime
		cfg.BotType = tc.botType
		assert.Equal(t, tc.allowed, cfg.RegimeAllows(),
			"regime=%q botType=%q", tc.regime, tc.botType)
	}
}

func TestConfigValidate_ManualRegime(t *testing.T) {
	cfg := validConfig()
	cfg.ManualRegime = RegimeRange
	assert.NoError(t, cfg.Validate())

	cfg.ManualRegime = "SIDEWAYS"
	assert.Error(t, cfg.Validate())
}

func TestStateFilePath(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "bot_trades/bot-1_trades.json", cfg.StateFilePath())

	cfg.Persistence.Path = "/data/state.json"
	assert.Equal(t, "/data/state.json", cfg.StateFilePath())
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
}

func TestBotStateClone(t *testing.T) {
	state := NewBotState("bot-1", "BTCUSDT")
	state.OpenTrades = append(state.OpenTrades, Trade{Qty: 1, FillPrice: 100})
	state.TotalRealizedPnL = 5

	clone := state.Clone()
	clone.OpenTrades[0].FillPrice = 999
	clone.TotalRealizedPnL = -1

	assert.InDelta(t, 100.0, state.OpenTrades[0].FillPrice, 1e-9)
	assert.InDelta(t, 5.0, state.TotalRealizedPnL, 1e-9)

	var nilState *BotState
	assert.Nil(t, nilState.Clone())
}

func TestNewTradeID(t *testing.T) {
	a, b := NewTradeID(), NewTradeID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
