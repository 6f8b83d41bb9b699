package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"bitunix-trend-bot-go/internal/models"
)

// LoadConfig 从指定路径加载JSON配置文件并解析到Config结构体中。
// 配置不完整时立即返回错误，引擎绝不能带着无效配置进入运行状态。
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	cfg := &models.Config{}
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// OverrideBotType 将命令行 -bot 覆盖应用到已加载的配置上。
// 空字符串表示不覆盖；结果配置仍需通过校验。
func OverrideBotType(cfg *models.Config, botType string) error {
	if botType == "" {
		return nil
	}
	switch strings.ToUpper(botType) {
	case "LONG":
		cfg.BotType = "LONG"
	case "SHORT":
		cfg.BotType = "SHORT"
	default:
		return fmt.Errorf("unknown bot type override %q, want long or short", botType)
	}
	return cfg.Validate()
}

// UpdateStatus rewrites the status block of the config file when the bot
// stops. The file is decoded into a generic map so fields this version does
// not know about survive the round trip.
func UpdateStatus(path string, enabled bool, reason string, totalPnL float64) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	status, _ := raw["status"].(map[string]interface{})
	if status == nil {
		status = make(map[string]interface{})
	}
	status["enabled"] = enabled
	status["stoppedAt"] = time.Now().Format(time.RFC3339)
	status["stopReason"] = reason
	status["totalRealizedPnl"] = totalPnL
	raw["status"] = status

	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}
