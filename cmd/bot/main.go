package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bitunix-trend-bot-go/internal/bot"
	"bitunix-trend-bot-go/internal/config"
	"bitunix-trend-bot-go/internal/downloader"
	"bitunix-trend-bot-go/internal/exchange"
	"bitunix-trend-bot-go/internal/logger"
	"bitunix-trend-bot-go/internal/models"
	"bitunix-trend-bot-go/internal/persistence"
	"bitunix-trend-bot-go/internal/reporter"
	"bitunix-trend-bot-go/internal/storage"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configFlag := flag.String("config", "config.json", "逗号分隔的机器人配置文件列表")
	botFlag := flag.String("bot", "", "覆盖所有配置的方向: long 或 short")
	envFlag := flag.String("env", ".env", "API 密钥所在的环境文件")
	flag.Parse()

	// .env 缺失不是错误，密钥也可以直接来自进程环境
	_ = godotenv.Load(*envFlag)

	paths := splitPaths(*configFlag)
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "no config files given")
		os.Exit(1)
	}

	configs := make([]*models.Config, 0, len(paths))
	for _, p := range paths {
		cfg, err := config.LoadConfig(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", p, err)
			os.Exit(1)
		}
		if err := config.OverrideBotType(cfg, *botFlag); err != nil {
			fmt.Fprintf(os.Stderr, "bad -bot flag for %s: %v\n", p, err)
			os.Exit(1)
		}
		configs = append(configs, cfg)
	}

	// 日志配置取第一个机器人的，所有机器人共用一个日志器
	logger.InitLogger(configs[0].LogConfig)
	log := logger.S()
	defer log.Sync()

	apiKey := os.Getenv("BITUNIX_API_KEY")
	apiSecret := os.Getenv("BITUNIX_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		log.Fatal("BITUNIX_API_KEY / BITUNIX_API_SECRET must be set")
	}

	ex := exchange.NewBitunixExchange(apiKey, apiSecret,
		os.Getenv("BITUNIX_BASE_URL"), os.Getenv("BITUNIX_WS_URL"), log)
	defer ex.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager := bot.NewManager(log)
	var engines []*bot.Engine
	var cleanups []func()

	for i, cfg := range configs {
		if !cfg.RegimeAllows() {
			log.Warnf("bot %s skipped: manual regime %s does not allow %s",
				cfg.BotID, cfg.ManualRegime, cfg.BotType)
			continue
		}
		eng, cleanup, err := buildEngine(cfg, paths[i], ex, log)
		if err != nil {
			log.Errorf("skipping bot %s: %v", cfg.BotID, err)
			continue
		}
		cleanups = append(cleanups, cleanup)

		if err := manager.StartBot(ctx, eng); err != nil {
			log.Errorf("failed to start bot %s: %v", cfg.BotID, err)
			continue
		}
		ex.StartTickerStream(cfg.TradingParams.Symbol)
		engines = append(engines, eng)
	}

	if len(engines) == 0 {
		log.Fatal("no bots started")
	}

	<-ctx.Done()
	log.Warn("shutdown signal received, stopping all bots...")
	manager.StopAll()

	for _, eng := range engines {
		reporter.PrintFinal(eng.FinalReport())
	}
	for _, cleanup := range cleanups {
		cleanup()
	}
}

// buildEngine wires one bot: state repository, optional trade journal and
// optional ATR warm-up source, per its config.
func buildEngine(cfg *models.Config, configPath string, ex exchange.Exchange,
	log *zap.SugaredLogger) (*bot.Engine, func(), error) {

	var repo persistence.StateRepository
	var err error
	switch cfg.Persistence.Backend {
	case "badger":
		repo, err = persistence.NewBadgerRepository(cfg.Persistence.Path, cfg.BotID)
	default:
		repo, err = persistence.NewFileRepository(cfg.StateFilePath())
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state store: %w", err)
	}

	var journal *storage.Journal
	if cfg.JournalPath != "" {
		journal, err = storage.OpenJournal(cfg.JournalPath)
		if err != nil {
			log.Warnf("trade journal unavailable, continuing without: %v", err)
			journal = nil
		}
	}

	var warmup bot.WarmupFunc
	if cfg.Warmup.Enabled && cfg.Thresholds.UseATR {
		dl := downloader.NewKlineDownloader()
		symbol, interval := cfg.TradingParams.Symbol, cfg.Warmup.Interval
		limit := cfg.Thresholds.ATRPeriod + 1
		warmup = func(ctx context.Context) ([]float64, error) {
			wctx, cancel := context.WithTimeout(ctx, downloader.WarmupTimeout)
			defer cancel()
			return dl.RecentCloses(wctx, symbol, interval, limit)
		}
	}

	eng, err := bot.NewEngine(cfg, configPath, ex, repo, journal, warmup, logger.S())
	if err != nil {
		repo.Close()
		if journal != nil {
			journal.Close()
		}
		return nil, nil, err
	}

	cleanup := func() {
		repo.Close()
		if journal != nil {
			journal.Close()
		}
	}
	return eng, cleanup, nil
}

func splitPaths(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
