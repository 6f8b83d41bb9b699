// Package downloader backfills recent closing prices so ATR-mode bots do
// not have to sit silent for atr_period+1 poll intervals after a restart.
// Bitunix does not expose public history through this client, so closes
// are fetched from Binance's public kline endpoint; most perpetual symbols
// trade on both under the same name.
package downloader

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
)

// KlineDownloader 用于从币安公共接口拉取K线收盘价
type KlineDownloader struct {
	client *binance.Client
}

// NewKlineDownloader 创建一个新的下载器实例
func NewKlineDownloader() *KlineDownloader {
	return &KlineDownloader{
		client: binance.NewClient("", ""), // 公共接口不需要API Key
	}
}

// RecentCloses returns up to limit most recent closing prices for symbol
// at the given interval, ordered oldest first. Failures are the caller's
// to tolerate; warm-up is an optimization, never a requirement.
func (d *KlineDownloader) RecentCloses(ctx context.Context, symbol, interval string, limit int) ([]float64, error) {
	if interval == "" {
		interval = "1m"
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	klines, err := d.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines for %s: %w", symbol, err)
	}

	closes := make([]float64, 0, len(klines))
	for _, k := range klines {
		price, err := strconv.ParseFloat(k.Close, 64)
		if err != nil || price <= 0 {
			continue
		}
		closes = append(closes, price)
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("no usable closes returned for %s", symbol)
	}
	return closes, nil
}

// WarmupTimeout bounds one warm-up attempt at startup.
const WarmupTimeout = 10 * time.Second
