// Package bot contains the execution engine: the run loop and state
// machine that polls prices, drives the strategy, enforces risk limits and
// keeps the persisted state consistent with what actually executed.
package bot

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"bitunix-trend-bot-go/internal/config"
	"bitunix-trend-bot-go/internal/exchange"
	"bitunix-trend-bot-go/internal/models"
	"bitunix-trend-bot-go/internal/persistence"
	"bitunix-trend-bot-go/internal/position"
	"bitunix-trend-bot-go/internal/reporter"
	"bitunix-trend-bot-go/internal/risk"
	"bitunix-trend-bot-go/internal/storage"
	"bitunix-trend-bot-go/internal/strategy"

	"go.uber.org/zap"
)

// Stop reasons recorded in the final status and the trade journal.
const (
	ReasonTakeProfit  = "take_profit"
	ReasonStopLoss    = "stop_loss"
	ReasonBotStopLoss = "bot_stop_loss"
	ReasonTarget      = "target"
	ReasonShutdown    = "shutdown"
)

// WarmupFunc supplies historical closes to seed the strategy's ATR window.
// Optional; warm-up failures are tolerated.
type WarmupFunc func(ctx context.Context) ([]float64, error)

// Engine runs one bot. The run loop is single-threaded and cooperative:
// all decisions of one iteration happen sequentially, so the bot's own
// state needs no locking. Only the externally readable status is guarded.
type Engine struct {
	cfg        *models.Config
	configPath string
	exchange   exchange.Exchange
	repo       persistence.StateRepository
	journal    *storage.Journal // optional, may be nil
	strat      strategy.Strategy
	riskMgr    *risk.Manager
	warmup     WarmupFunc // optional, may be nil
	logger     *zap.SugaredLogger

	lotSize  *models.LotSizeFilter
	quantity float64
	state    *models.BotState

	tradesThisWindow int
	windowStart      time.Time
	prevPrice        float64
	lastReport       time.Time

	// Loop timing, overridable in tests.
	pollInterval    time.Duration
	priceRetryDelay time.Duration
	errorBackoff    time.Duration
	reportEvery     time.Duration

	mu         sync.RWMutex
	status     models.BotStatus
	stopReason string
}

// NewEngine builds an engine for cfg. Configuration problems are fatal
// here; the engine must never enter RUNNING with an invalid config.
func NewEngine(cfg *models.Config, configPath string, ex exchange.Exchange,
	repo persistence.StateRepository, journal *storage.Journal,
	warmup WarmupFunc, logger *zap.SugaredLogger) (*Engine, error) {

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bot configuration: %w", err)
	}

	e := &Engine{
		cfg:        cfg,
		configPath: configPath,
		exchange:   ex,
		repo:       repo,
		journal:    journal,
		strat:      strategy.New(cfg),
		riskMgr: risk.NewManager(
			cfg.Thresholds.MaxTradesPerMinute,
			cfg.Thresholds.PositionSizeLimit,
			cfg.StopLoss.BotStopLoss,
		),
		warmup: warmup,

		pollInterval:    5 * time.Second,
		priceRetryDelay: 3 * time.Second,
		errorBackoff:    8 * time.Second,
		reportEvery:     5 * time.Minute,

		status: models.StatusInitializing,
	}
	e.logger = logger.With("bot_id", cfg.BotID, "strategy", e.strat.Name())
	return e, nil
}

// Status returns the engine's current lifecycle state.
func (e *Engine) Status() models.BotStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// StopReason returns why the engine stopped; empty while running.
func (e *Engine) StopReason() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stopReason
}

// RealizedPnL returns the cumulative realized PnL. Only meaningful once
// the engine has stopped; the run loop owns the state while running.
func (e *Engine) RealizedPnL() float64 {
	if e.state == nil {
		return 0
	}
	return e.state.TotalRealizedPnL
}

// OpenTradeCount reports the remaining bookkeeping entries after a stop.
func (e *Engine) OpenTradeCount() int {
	if e.state == nil {
		return 0
	}
	return len(e.state.OpenTrades)
}

// StrategyName names the active variant for reporting.
func (e *Engine) StrategyName() string {
	return e.strat.Name()
}

// FinalReport assembles the stop summary for this bot, including the
// journal aggregate when a journal is attached. Call after Run returns.
func (e *Engine) FinalReport() reporter.FinalReport {
	r := reporter.FinalReport{
		BotID:          e.cfg.BotID,
		Symbol:         e.cfg.TradingParams.Symbol,
		Strategy:       e.strat.Name(),
		StopReason:     e.StopReason(),
		RealizedPnL:    e.RealizedPnL(),
		OpenTradesLeft: e.OpenTradeCount(),
	}
	if e.journal != nil {
		if summary, err := e.journal.Summarize(e.cfg.BotID); err == nil {
			r.Journal = summary
		}
	}
	return r
}

func (e *Engine) setStatus(s models.BotStatus) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
}

func (e *Engine) setStopReason(reason string) {
	e.mu.Lock()
	e.stopReason = reason
	e.mu.Unlock()
}

// Run executes the bot until a stop trigger fires or ctx is cancelled.
// Only initialization failures are returned; everything that happens after
// the loop starts is handled inside it.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.initialize(ctx); err != nil {
		e.setStatus(models.StatusStopped)
		e.setStopReason("initialization failed")
		return err
	}

	// Cancellation during the initial price wait takes the error exit
	// path: best-effort close, then stop.
	if err := e.awaitInitialPrice(ctx); err != nil {
		e.logger.Warnf("cancelled while waiting for initial price: %v", err)
		e.shutdown(models.StatusExitingOnError, ReasonShutdown, 0)
		return nil
	}

	e.logger.Infof("start price: $%.4f | open trades: %d | realized PnL: $%.6f",
		e.prevPrice, len(e.state.OpenTrades), e.state.TotalRealizedPnL)

	e.setStatus(models.StatusRunning)
	e.windowStart = time.Now()
	e.lastReport = time.Now()
	e.runLoop(ctx)
	return nil
}

// initialize loads persisted state and normalizes the trade quantity to
// the exchange's lot-size step.
func (e *Engine) initialize(ctx context.Context) error {
	e.logger.Infof("initializing bot for %s (%s)", e.cfg.TradingParams.Symbol, e.strat.Name())

	filter, err := e.exchange.GetLotSizeFilter(e.cfg.TradingParams.Symbol)
	if err != nil || filter == nil {
		// The exchange not answering here is survivable: fall back to the
		// conventional minimum so the quantity stays well-formed.
		e.logger.Warnf("failed to fetch lot size filter, using defaults: %v", err)
		filter = &models.LotSizeFilter{MinQty: 0.01, QtyStep: 0.01}
	}
	e.lotSize = filter
	e.quantity = exchange.RoundQuantity(e.cfg.TradingParams.Quantity, filter)
	e.logger.Infof("quantity normalized: %v -> %v (step %v, min %v)",
		e.cfg.TradingParams.Quantity, e.quantity, filter.QtyStep, filter.MinQty)

	state, err := e.repo.LoadState()
	if err != nil {
		return fmt.Errorf("failed to load persisted state: %w", err)
	}
	if state == nil {
		state = models.NewBotState(e.cfg.BotID, e.cfg.TradingParams.Symbol)
	}
	e.state = state
	e.logger.Infof("loaded %d open trades from store, realized PnL $%.6f",
		len(state.OpenTrades), state.TotalRealizedPnL)

	if e.warmup != nil && e.cfg.Thresholds.UseATR {
		closes, err := e.warmup(ctx)
		if err != nil {
			e.logger.Warnf("ATR warm-up failed, window fills from live samples: %v", err)
		} else {
			e.strat.WarmUp(closes)
			e.logger.Infof("ATR window warmed up with %d historical closes", len(closes))
		}
	}

	return nil
}

// awaitInitialPrice blocks until a first price sample is obtained. This is
// the engine's only unbounded wait and must stay interruptible.
func (e *Engine) awaitInitialPrice(ctx context.Context) error {
	for {
		price, err := e.exchange.GetTicker(e.cfg.TradingParams.Symbol)
		if err == nil && price > 0 {
			e.prevPrice = price
			return nil
		}
		e.logger.Warnf("waiting for initial %s price...", e.cfg.TradingParams.Symbol)
		if !e.sleep(ctx, e.priceRetryDelay) {
			return ctx.Err()
		}
	}
}

// runLoop is the RUNNING state. One iteration: window reset, price fetch,
// stop-trigger checks in priority order, FIFO exit processing, entry
// attempt, sleep.
func (e *Engine) runLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.logger.Warn("external cancellation received")
			e.shutdown(models.StatusExitingOnError, ReasonShutdown, e.prevPrice)
			return
		default:
		}

		now := time.Now()
		// Fixed-window counter: reset 60s after the window opened, measured
		// on the wall clock. Coarser than a sliding window, kept that way.
		if now.Sub(e.windowStart) >= time.Minute {
			e.tradesThisWindow = 0
			e.windowStart = now
		}

		currentPrice, err := e.exchange.GetTicker(e.cfg.TradingParams.Symbol)
		if err != nil || currentPrice <= 0 {
			e.logger.Warnf("price fetch failed, skipping iteration: %v", err)
			if !e.sleep(ctx, e.priceRetryDelay) {
				e.shutdown(models.StatusExitingOnError, ReasonShutdown, e.prevPrice)
				return
			}
			continue
		}

		if stopped := e.checkStopTriggers(currentPrice); stopped {
			return
		}

		iterationErr := e.processExitTargets(currentPrice)

		if now.Sub(e.lastReport) >= e.reportEvery {
			e.reportStatus(currentPrice)
			e.lastReport = now
		}

		if e.tradesThisWindow < e.cfg.Thresholds.MaxTradesPerMinute {
			if err := e.checkEntrySignal(currentPrice, e.prevPrice); err != nil {
				iterationErr = err
			}
			e.prevPrice = currentPrice
		}

		delay := e.pollInterval
		if iterationErr != nil {
			e.logger.Errorf("loop error: %v", iterationErr)
			delay = e.errorBackoff
		}
		if !e.sleep(ctx, delay) {
			e.shutdown(models.StatusExitingOnError, ReasonShutdown, currentPrice)
			return
		}
	}
}

// checkStopTriggers evaluates take-profit, stop-loss and the bot-level
// stop-loss, in that priority order. The first hit forces a full close.
func (e *Engine) checkStopTriggers(currentPrice float64) bool {
	if e.strat.TriggerTP(currentPrice) {
		e.logger.Warnf("TAKE PROFIT HIT at $%.4f", currentPrice)
		e.shutdown(models.StatusExitingOnSignal, ReasonTakeProfit, currentPrice)
		return true
	}

	if e.strat.TriggerSL(currentPrice) {
		e.logger.Warnf("STOP LOSS HIT at $%.4f", currentPrice)
		e.shutdown(models.StatusExitingOnSignal, ReasonStopLoss, currentPrice)
		return true
	}

	if e.cfg.StopLoss.BotStopLoss != nil {
		totalPnL := position.TotalPnL(e.state.OpenTrades, e.state.TotalRealizedPnL,
			currentPrice, e.strat.ExitFeeRate(), e.strat.IsLong())
		if stop, msg := e.riskMgr.ShouldStopBot(totalPnL); stop {
			e.logger.Warnf("BOT STOP LOSS: %s", msg)
			e.shutdown(models.StatusExitingOnError, ReasonBotStopLoss, currentPrice)
			return true
		}
	}

	return false
}

// processExitTargets walks the open trades oldest-first. A trade whose
// exit condition is unmet, or whose close the exchange rejects, goes back
// into the queue unchanged so it is retried next iteration.
func (e *Engine) processExitTargets(currentPrice float64) error {
	if len(e.state.OpenTrades) == 0 {
		return nil
	}

	kept := make([]models.Trade, 0, len(e.state.OpenTrades))
	closedAny := false
	var lastErr error

	for _, trade := range e.state.OpenTrades {
		if !e.strat.ShouldExit(trade, currentPrice) {
			kept = append(kept, trade)
			continue
		}
		ok, err := e.executeExit(trade, currentPrice)
		if err != nil {
			lastErr = err
		}
		if ok {
			closedAny = true
		} else {
			kept = append(kept, trade)
		}
	}

	e.state.OpenTrades = kept
	if closedAny {
		e.persistState()
	}
	return lastErr
}

// executeExit closes one trade against the exchange's reported position.
// Returns false when nothing executed; the caller re-queues the trade.
func (e *Engine) executeExit(trade models.Trade, currentPrice float64) (bool, error) {
	symbol := e.cfg.TradingParams.Symbol

	positions, err := e.exchange.GetOpenPositions(symbol, e.cfg.TradingParams.TradingMode)
	if err != nil {
		return false, fmt.Errorf("failed to fetch open positions: %w", err)
	}
	if len(positions) == 0 {
		e.logger.Warn("no open positions on exchange to close")
		return false, nil
	}

	pos := positions[0]
	positionQty := math.Abs(pos.Qty)
	if positionQty <= 0 {
		return false, nil
	}

	qty := exchange.RoundQuantity(math.Min(trade.Qty, positionQty), e.lotSize)

	req := models.OrderRequest{
		Symbol:    symbol,
		Side:      e.strat.ExitSide(),
		Qty:       qty,
		OrderType: "MARKET",
	}
	if pos.PositionID != "" {
		req.TradeSide = models.TradeSideClose
		req.PositionID = pos.PositionID
	} else {
		req.ReduceOnly = true
	}

	order, err := e.exchange.PlaceOrder(req)
	if err != nil {
		return false, fmt.Errorf("exit order failed: %w", err)
	}

	closedQty := order.FilledQty
	if closedQty <= 0 {
		closedQty = qty
	}

	pnl := e.strat.TradePnL(trade, currentPrice, closedQty)
	e.state.TotalRealizedPnL += pnl
	e.logger.Infof("TARGET HIT - entry $%.4f -> exit $%.4f = PnL $%.7f",
		trade.FillPrice, currentPrice, pnl)

	e.journalClose(trade, currentPrice, closedQty, pnl, ReasonTarget)
	return true, nil
}

// checkEntrySignal asks the strategy about the latest move and, if it
// fires and risk admits it, executes the entry.
func (e *Engine) checkEntrySignal(currentPrice, prevPrice float64) error {
	sig, fired := e.strat.CheckEntry(currentPrice, prevPrice)
	if !fired {
		return nil
	}

	switch sig.Mode {
	case strategy.ModeATR:
		e.logger.Warnf("ENTRY SIGNAL (ATR): move $%.4f | ATR $%.4f | from $%.4f to $%.4f",
			sig.Move, sig.ATR, prevPrice, currentPrice)
	default:
		e.logger.Warnf("ENTRY SIGNAL (percentage): move %.4f%% | from $%.4f to $%.4f",
			sig.Move*100, prevPrice, currentPrice)
	}

	return e.executeEntry(currentPrice)
}

// executeEntry runs the risk gate and places the opening order. A denied
// entry is normal control flow, not an error.
func (e *Engine) executeEntry(currentPrice float64) error {
	positionSize := position.CurrentPositionSize(e.state.OpenTrades, currentPrice)

	allowed, reason := e.riskMgr.CanOpenNewTrade(positionSize, e.tradesThisWindow)
	if !allowed {
		e.logger.Warnf("entry denied: %s", reason)
		return nil
	}

	order, err := e.exchange.PlaceOrder(models.OrderRequest{
		Symbol:        e.cfg.TradingParams.Symbol,
		Side:          e.strat.EntrySide(),
		Qty:           e.quantity,
		OrderType:     "MARKET",
		TradeSide:     models.TradeSideOpen,
		ClientOrderID: models.NewTradeID(),
	})
	if err != nil {
		// Failure means no effect occurred; nothing is recorded.
		return fmt.Errorf("entry order failed: %w", err)
	}

	fillPrice := currentPrice
	if p, err := e.exchange.GetTicker(e.cfg.TradingParams.Symbol); err == nil && p > 0 {
		fillPrice = p
	}

	qty := order.FilledQty
	if qty <= 0 {
		qty = e.quantity
	}
	fee := qty * fillPrice * e.strat.EntryFeeRate()

	trade := models.Trade{
		Qty:         qty,
		FillPrice:   fillPrice,
		Fee:         fee,
		TargetPrice: e.strat.TargetPrice(fillPrice),
		OrderID:     order.OrderID,
		CreatedAt:   time.Now(),
	}
	e.state.OpenTrades = append(e.state.OpenTrades, trade)
	e.tradesThisWindow++

	e.logger.Infof("trade registered - fill $%.4f, target $%.4f, qty %v",
		trade.FillPrice, trade.TargetPrice, trade.Qty)
	e.persistState()
	return nil
}

// shutdown is the EXITING_ON_SIGNAL / EXITING_ON_ERROR state: force-close
// everything the exchange reports, clear bookkeeping, persist, mark the
// configuration disabled, and land in STOPPED.
func (e *Engine) shutdown(status models.BotStatus, reason string, currentPrice float64) {
	e.setStatus(status)
	e.setStopReason(reason)
	e.logger.Warnf("closing all positions (%s)", reason)

	e.forceCloseAll(reason, currentPrice)

	if e.configPath != "" {
		if err := config.UpdateStatus(e.configPath, false, reason, e.state.TotalRealizedPnL); err != nil {
			e.logger.Errorf("failed to write stop status back to config: %v", err)
		}
	}

	e.setStatus(models.StatusStopped)
	e.logger.Infof("bot stopped (%s). final realized PnL: $%.6f", reason, e.state.TotalRealizedPnL)
}

// forceCloseAll closes what the exchange actually holds; its report is
// authoritative over the bot's own bookkeeping. Close failures are logged
// and the in-memory trades cleared anyway - an abandoned position beats an
// engine that can never stop.
func (e *Engine) forceCloseAll(reason string, currentPrice float64) {
	symbol := e.cfg.TradingParams.Symbol

	if currentPrice <= 0 {
		if p, err := e.exchange.GetTicker(symbol); err == nil {
			currentPrice = p
		}
	}

	positions, err := e.exchange.GetOpenPositions(symbol, e.cfg.TradingParams.TradingMode)
	if err != nil {
		e.logger.Errorf("failed to fetch positions during forced close, abandoning: %v", err)
		e.clearOpenTrades()
		e.persistState()
		return
	}

	if len(positions) == 0 {
		e.logger.Warn("no open positions found on exchange")
		if len(e.state.OpenTrades) > 0 {
			e.logger.Warnf("clearing %d trades from memory", len(e.state.OpenTrades))
			e.clearOpenTrades()
		}
		e.persistState()
		return
	}

	closedCount := 0
	for idx, pos := range positions {
		if pos.Qty <= 0 {
			continue
		}
		if err := e.closePosition(pos); err != nil {
			e.logger.Errorf("failed to close position #%d: %v", idx+1, err)
			continue
		}
		closedCount++

		// Realize PnL FIFO against our own bookkeeping where possible.
		if len(e.state.OpenTrades) > 0 && currentPrice > 0 {
			trade := e.state.OpenTrades[0]
			e.state.OpenTrades = e.state.OpenTrades[1:]
			pnl := e.strat.TradePnL(trade, currentPrice, pos.Qty)
			e.state.TotalRealizedPnL += pnl
			e.logger.Infof("position #%d PnL: $%.6f", idx+1, pnl)
			e.journalClose(trade, currentPrice, pos.Qty, pnl, reason)
		}
	}

	if len(e.state.OpenTrades) > 0 {
		e.logger.Warnf("clearing %d remaining trades from memory", len(e.state.OpenTrades))
		e.clearOpenTrades()
	}
	e.persistState()
	e.logger.Warnf("closed %d positions. total realized PnL: $%.6f",
		closedCount, e.state.TotalRealizedPnL)
}

// closePosition submits a market order flattening one exchange position.
func (e *Engine) closePosition(pos models.Position) error {
	qty := exchange.RoundQuantity(pos.Qty, e.lotSize)
	req := models.OrderRequest{
		Symbol:    e.cfg.TradingParams.Symbol,
		Side:      pos.Side.Opposite(),
		Qty:       qty,
		OrderType: "MARKET",
	}
	if pos.PositionID != "" {
		req.TradeSide = models.TradeSideClose
		req.PositionID = pos.PositionID
	} else {
		req.ReduceOnly = true
	}
	_, err := e.exchange.PlaceOrder(req)
	return err
}

func (e *Engine) clearOpenTrades() {
	e.state.OpenTrades = e.state.OpenTrades[:0]
}

// persistState saves trades and realized PnL together. A failed save is
// logged loudly; the engine keeps trading on its in-memory state.
func (e *Engine) persistState() {
	if err := e.repo.SaveState(e.state); err != nil {
		e.logger.Errorf("CRITICAL: failed to persist state: %v", err)
	}
}

func (e *Engine) journalClose(trade models.Trade, exitPrice, qty, pnl float64, reason string) {
	if e.journal == nil {
		return
	}
	err := e.journal.Record(storage.ClosedTrade{
		BotID:      e.cfg.BotID,
		Symbol:     e.cfg.TradingParams.Symbol,
		Side:       string(e.strat.EntrySide()),
		Qty:        qty,
		EntryPrice: trade.FillPrice,
		ExitPrice:  exitPrice,
		EntryFee:   trade.Fee,
		PnL:        pnl,
		Reason:     reason,
		OpenedAt:   trade.CreatedAt,
		ClosedAt:   time.Now(),
	})
	if err != nil {
		e.logger.Errorf("failed to journal closed trade: %v", err)
	}
}

func (e *Engine) reportStatus(currentPrice float64) {
	totalPnL := position.TotalPnL(e.state.OpenTrades, e.state.TotalRealizedPnL,
		currentPrice, e.strat.ExitFeeRate(), e.strat.IsLong())
	positionSize := position.CurrentPositionSize(e.state.OpenTrades, currentPrice)
	e.logger.Infof("status: price $%.4f | open: %d | position: $%.2f | total PnL: $%.6f",
		currentPrice, len(e.state.OpenTrades), positionSize, totalPnL)
}

// sleep waits for d or until ctx is cancelled; false means cancelled.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
