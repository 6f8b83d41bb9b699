package models

import (
	"fmt"
	"strings"
)

// Config 结构体定义了机器人的所有配置参数
type Config struct {
	BotID      string `json:"botId"`
	ClientName string `json:"clientName"`
	BotType    string `json:"botType"` // "LONG" 或 "SHORT"

	ManualRegime MarketRegime `json:"manualRegime,omitempty"` // 手工标注的市场状态，留空则不设门槛

	TradingParams TradingParams `json:"tradingParams"`
	Thresholds    Thresholds    `json:"thresholds"`
	TakeProfit    PriceTrigger  `json:"takeProfit"`
	StopLoss      StopLoss      `json:"stopLoss"`
	Fees          Fees          `json:"fees"`
	Persistence   Persistence   `json:"persistence"`
	Warmup        Warmup        `json:"warmup"`
	JournalPath   string        `json:"journalPath,omitempty"` // sqlite 成交日志路径，留空则禁用
	LogConfig     LogConfig     `json:"log"`

	Status *RunStatus `json:"status,omitempty"` // 由引擎在停止时写回
}

// TradingParams 定义了交易标的与下单参数
type TradingParams struct {
	Symbol              string  `json:"symbol"` // 交易对，如 "BTCUSDT"
	Quantity            float64 `json:"quantity"`
	TradingMode         string  `json:"tradingMode"` // 持仓模式/方向过滤, e.g. "linear"
	DesiredPositionSize float64 `json:"desiredPositionSize"`
}

// Thresholds 定义了入场信号与风控阈值
type Thresholds struct {
	BuyThreshold       float64 `json:"buyThreshold"`  // 百分比阈值 (0.02 = 2%)
	SellThreshold      float64 `json:"sellThreshold"` // 百分比阈值
	MaxTradesPerMinute int     `json:"maxTradesPerMinute"`
	PositionSizeLimit  float64 `json:"positionSizeLimit"` // 名义价值上限 (USDT)
	UseATR             bool    `json:"useATR"`
	ATRPeriod          int     `json:"atrPeriod"`
	ATRMultiplier      float64 `json:"atrMultiplier"`
}

// PriceTrigger 是一个可独立启用的绝对价格触发器
type PriceTrigger struct {
	Enabled    bool     `json:"enabled"`
	PriceLevel *float64 `json:"priceLevel,omitempty"`
}

// StopLoss 在 PriceTrigger 之上增加了机器人级别的累计PnL止损
type StopLoss struct {
	Enabled     bool     `json:"enabled"`
	PriceLevel  *float64 `json:"priceLevel,omitempty"`
	BotStopLoss *float64 `json:"botStopLoss,omitempty"` // 累计PnL下限，nil 表示不启用
}

// Fees 定义了买卖双边手续费率
type Fees struct {
	Buy  float64 `json:"buy"`
	Sell float64 `json:"sell"`
}

// Persistence selects where the bot state lives between restarts.
type Persistence struct {
	Backend string `json:"backend"` // "file" (default) or "badger"
	Path    string `json:"path"`    // state file path or badger directory
}

// Warmup optionally backfills recent closes so ATR mode is armed at startup.
type Warmup struct {
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval,omitempty"` // kline interval, default "1m"
}

// RunStatus is written back into the config file when the bot stops, so the
// management layer can see why and with what final PnL.
type RunStatus struct {
	Enabled          bool    `json:"enabled"`
	StoppedAt        string  `json:"stoppedAt,omitempty"`
	StopReason       string  `json:"stopReason,omitempty"`
	TotalRealizedPnL float64 `json:"totalRealizedPnl"`
}

// LogConfig 定义了日志相关的配置
type LogConfig struct {
	Level      string `json:"level"`       // 日志级别, e.g., "debug", "info", "warn", "error"
	Output     string `json:"output"`      // 输出模式: "console", "file", "both"
	File       string `json:"file"`        // 日志文件路径
	MaxSize    int    `json:"max_size"`    // 单个日志文件的最大大小 (MB)
	MaxBackups int    `json:"max_backups"` // 保留的旧日志文件最大数量
	MaxAge     int    `json:"max_age"`     // 旧日志文件的最大保留天数
	Compress   bool   `json:"compress"`    // 是否压缩旧日志文件
}

// MarketRegime 是操作员手工标注的市场状态。做多机器人只在
// UPTREND/RANGE 下运行，做空机器人只在 DOWNTREND/RANGE 下运行。
type MarketRegime string

const (
	RegimeUptrend   MarketRegime = "UPTREND"
	RegimeDowntrend MarketRegime = "DOWNTREND"
	RegimeRange     MarketRegime = "RANGE"
	RegimeUnknown   MarketRegime = "UNKNOWN"
)

// AllowsLong reports whether a long bot should run under this regime.
func (r MarketRegime) AllowsLong() bool {
	return r == RegimeUptrend || r == RegimeRange
}

// AllowsShort reports whether a short bot should run under this regime.
func (r MarketRegime) AllowsShort() bool {
	return r == RegimeDowntrend || r == RegimeRange
}

// IsLong reports the directional posture selected by BotType.
func (c *Config) IsLong() bool {
	return c.BotType != "SHORT" && c.BotType != "TREND_SHORT"
}

// RegimeAllows reports whether the manually tagged regime permits this
// bot's direction. An unset regime imposes no gate; UNKNOWN blocks both.
func (c *Config) RegimeAllows() bool {
	if c.ManualRegime == "" {
		return true
	}
	regime := MarketRegime(strings.ToUpper(string(c.ManualRegime)))
	if c.IsLong() {
		return regime.AllowsLong()
	}
	return regime.AllowsShort()
}

// Validate 校验配置的完整性，配置错误必须在进入运行状态前失败
func (c *Config) Validate() error {
	if c.BotID == "" {
		return fmt.Errorf("botId is required")
	}
	if c.TradingParams.Symbol == "" {
		return fmt.Errorf("tradingParams.symbol is required")
	}
	if c.TradingParams.Quantity <= 0 {
		return fmt.Errorf("tradingParams.quantity must be positive, got %v", c.TradingParams.Quantity)
	}
	switch c.BotType {
	case "", "LONG", "TREND_LONG", "SHORT", "TREND_SHORT":
	default:
		return fmt.Errorf("unknown botType: %s", c.BotType)
	}
	if c.Thresholds.MaxTradesPerMinute <= 0 {
		return fmt.Errorf("thresholds.maxTradesPerMinute must be positive")
	}
	if c.Thresholds.PositionSizeLimit <= 0 {
		return fmt.Errorf("thresholds.positionSizeLimit must be positive")
	}
	if c.Thresholds.BuyThreshold < 0 || c.Thresholds.SellThreshold < 0 {
		return fmt.Errorf("thresholds must not be negative")
	}
	if c.Thresholds.UseATR {
		if c.Thresholds.ATRPeriod <= 0 {
			return fmt.Errorf("thresholds.atrPeriod must be positive when useATR is set")
		}
		if c.Thresholds.ATRMultiplier <= 0 {
			return fmt.Errorf("thresholds.atrMultiplier must be positive when useATR is set")
		}
	}
	if c.TakeProfit.Enabled && c.TakeProfit.PriceLevel == nil {
		return fmt.Errorf("takeProfit.priceLevel is required when takeProfit is enabled")
	}
	if c.StopLoss.Enabled && c.StopLoss.PriceLevel == nil {
		return fmt.Errorf("stopLoss.priceLevel is required when stopLoss is enabled")
	}
	if c.Fees.Buy < 0 || c.Fees.Sell < 0 {
		return fmt.Errorf("fee rates must not be negative")
	}
	switch c.Persistence.Backend {
	case "", "file", "badger":
	default:
		return fmt.Errorf("unknown persistence backend: %s", c.Persistence.Backend)
	}
	switch MarketRegime(strings.ToUpper(string(c.ManualRegime))) {
	case "", RegimeUptrend, RegimeDowntrend, RegimeRange, RegimeUnknown:
	default:
		return fmt.Errorf("unknown manualRegime: %s", c.ManualRegime)
	}
	return nil
}

// StateFilePath returns the default per-bot state location used when the
// persistence path is not configured explicitly.
func (c *Config) StateFilePath() string {
	if c.Persistence.Path != "" {
		return c.Persistence.Path
	}
	return fmt.Sprintf("bot_trades/%s_trades.json", c.BotID)
}
