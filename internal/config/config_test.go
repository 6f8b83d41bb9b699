package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigJSON = `{
  "botId": "dip-btc-1",
  "botType": "LONG",
  "customField": "must-survive",
  "tradingParams": {
    "symbol": "BTCUSDT",
    "quantity": 0.01,
    "tradingMode": "LONG"
  },
  "thresholds": {
    "buyThreshold": 0.02,
    "sellThreshold": 0.02,
    "maxTradesPerMinute": 3,
    "positionSizeLimit": 1000
  },
  "fees": {"buy": 0.0002, "sell": 0.0006}
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfigJSON))
	require.NoError(t, err)

	assert.Equal(t, "dip-btc-1", cfg.BotID)
	assert.Equal(t, "BTCUSDT", cfg.TradingParams.Symbol)
	assert.Equal(t, 3, cfg.Thresholds.MaxTradesPerMinute)
	assert.True(t, cfg.IsLong())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidConfigRejected(t *testing.T) {
	// quantity 缺失 -> 校验失败，绝不能带病启动
	bad := `{"botId": "x", "tradingParams": {"symbol": "BTCUSDT"}}`
	_, err := LoadConfig(writeConfig(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantity")
}

func TestLoadConfig_MalformedJSON(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{"botId": `))
	assert.Error(t, err)
}

func TestOverrideBotType(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfigJSON))
	require.NoError(t, err)
	require.Equal(t, "LONG", cfg.BotType)

	// 大小写不敏感，覆盖后方向翻转
	require.NoError(t, OverrideBotType(cfg, "short"))
	assert.Equal(t, "SHORT", cfg.BotType)
	assert.False(t, cfg.IsLong())

	require.NoError(t, OverrideBotType(cfg, "LONG"))
	assert.Equal(t, "LONG", cfg.BotType)

	// 空串表示不覆盖
	require.NoError(t, OverrideBotType(cfg, ""))
	assert.Equal(t, "LONG", cfg.BotType)

	assert.Error(t, OverrideBotType(cfg, "grid"))
}

func TestUpdateStatus(t *testing.T) {
	path := writeConfig(t, validConfigJSON)

	require.NoError(t, UpdateStatus(path, false, "bot_stop_loss", -51.5))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))

	// 引擎不认识的字段必须原样保留
	assert.Equal(t, "must-survive", raw["customField"])

	status, ok := raw["status"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, status["enabled"])
	assert.Equal(t, "bot_stop_loss", status["stopReason"])
	assert.InDelta(t, -51.5, status["totalRealizedPnl"].(float64), 1e-9)
	assert.NotEmpty(t, status["stoppedAt"])

	// 更新后的文件仍然能作为配置加载
	_, err = LoadConfig(path)
	assert.NoError(t, err)
}
