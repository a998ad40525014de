// Package controller sequences the trading loop.
//
// All mutation happens on one event loop per process: book updates, fills
// and timer ticks are drained from their channels and handled strictly one
// at a time. That single-writer discipline is what keeps average-cost and
// PnL arithmetic correct: a risk evaluation always observes a state
// snapshot that reflects every fill applied before the evaluation began,
// and no fill is ever applied concurrently with another.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"kalshi-mm/internal/api"
	"kalshi-mm/internal/config"
	"kalshi-mm/internal/db"
	"kalshi-mm/internal/exchange"
	"kalshi-mm/internal/execution"
	"kalshi-mm/internal/market"
	"kalshi-mm/internal/risk"
	"kalshi-mm/internal/state"
	"kalshi-mm/internal/strategy"
	"kalshi-mm/pkg/types"
)

// Broadcaster pushes events to the monitoring stream. May be nil.
type Broadcaster interface {
	Broadcast(evt api.Event)
}

// marketState is the per-market slice of the loop's state. Only the event
// loop touches it.
type marketState struct {
	cfg     config.MarketConfig
	builder *market.Builder
	engine  *strategy.Engine
	orders  execution.QuoteOrders
	lastMid *types.Price
}

// Controller owns the event loop and implements api.StatusProvider.
type Controller struct {
	cfg     *config.Config
	feed    exchange.Feed
	exec    *execution.PaperEngine
	store   *state.Store
	riskMgr *risk.Manager
	differ  *execution.Differ
	repo    *db.Repository // nil disables persistence
	markets map[string]*marketState
	logger  *slog.Logger

	broadcaster Broadcaster
}

// New assembles a controller from configuration. A strategy engine is
// built per market so volatility state stays independent across markets.
func New(
	cfg *config.Config,
	feed exchange.Feed,
	exec *execution.PaperEngine,
	store *state.Store,
	repo *db.Repository,
	logger *slog.Logger,
) (*Controller, error) {
	rules, err := rulesFromConfig(cfg.Risk)
	if err != nil {
		return nil, fmt.Errorf("build risk rules: %w", err)
	}

	markets := make(map[string]*marketState, len(cfg.Markets))
	for _, mc := range cfg.Markets {
		engine, err := strategy.New(cfg.Strategy.Components, logger)
		if err != nil {
			return nil, fmt.Errorf("build strategy for %s: %w", mc.Ticker, err)
		}
		markets[mc.Ticker] = &marketState{
			cfg:     mc,
			builder: market.NewBuilder(mc.Ticker),
			engine:  engine,
			orders:  execution.QuoteOrders{MarketID: mc.Ticker},
		}
	}

	priceTol := decimal.New(1, -2)
	if cfg.Risk.Differ.PriceTolerance != "" {
		priceTol, err = decimal.NewFromString(cfg.Risk.Differ.PriceTolerance)
		if err != nil {
			return nil, fmt.Errorf("differ price tolerance: %w", err)
		}
	}

	return &Controller{
		cfg:     cfg,
		feed:    feed,
		exec:    exec,
		store:   store,
		riskMgr: risk.NewManager(rules, logger),
		differ:  execution.NewDiffer(priceTol, cfg.Risk.Differ.SizeTolerance),
		repo:    repo,
		markets: markets,
		logger:  logger.With("component", "controller"),
	}, nil
}

// SetBroadcaster attaches the monitoring stream. Call before Run.
func (c *Controller) SetBroadcaster(b Broadcaster) { c.broadcaster = b }

// rulesFromConfig resolves the configured rule order into instances. Rules
// not named in rule_order do not run.
func rulesFromConfig(cfg config.RiskConfig) ([]risk.Rule, error) {
	parseLimit := func(s string) (decimal.Decimal, error) {
		if s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	}

	hourly, err := parseLimit(cfg.Rules.HourlyLossLimit)
	if err != nil {
		return nil, fmt.Errorf("hourly_loss_limit: %w", err)
	}
	daily, err := parseLimit(cfg.Rules.DailyLossLimit)
	if err != nil {
		return nil, fmt.Errorf("daily_loss_limit: %w", err)
	}

	var rules []risk.Rule
	for _, name := range cfg.RuleOrder {
		switch name {
		case "stale_data":
			rules = append(rules, risk.StaleDataRule{MaxAge: cfg.Rules.StaleDataMaxAge})
		case "settlement_cutoff":
			rules = append(rules, risk.SettlementCutoffRule{CutoffMinutes: cfg.Rules.CutoffMinutes})
		case "max_inventory":
			rules = append(rules, risk.MaxInventoryRule{})
		case "max_order_size":
			rules = append(rules, risk.MaxOrderSizeRule{MaxSize: cfg.Rules.MaxOrderSize})
		case "hourly_loss_limit":
			rules = append(rules, risk.HourlyLossLimitRule{MaxLoss: hourly})
		case "daily_loss_limit":
			rules = append(rules, risk.DailyLossLimitRule{MaxLoss: daily})
		default:
			return nil, fmt.Errorf("unknown rule %q", name)
		}
	}
	return rules, nil
}

// Run drives the event loop until the context is cancelled. The feed runs
// in its own goroutine; everything else happens here.
func (c *Controller) Run(ctx context.Context) error {
	go func() {
		if err := c.feed.Run(ctx); err != nil && ctx.Err() == nil {
			c.logger.Error("feed stopped", "error", err)
		}
	}()

	quoteTicker := time.NewTicker(c.cfg.Strategy.QuoteInterval)
	defer quoteTicker.Stop()

	snapshotInterval := c.cfg.Store.SnapshotInterval
	if snapshotInterval <= 0 {
		snapshotInterval = time.Minute
	}
	snapshotTicker := time.NewTicker(snapshotInterval)
	defer snapshotTicker.Stop()

	now := time.Now()
	hourlyReset := time.NewTimer(nextBoundary(now, time.Hour).Sub(now))
	defer hourlyReset.Stop()
	dailyReset := time.NewTimer(nextBoundary(now, 24*time.Hour).Sub(now))
	defer dailyReset.Stop()

	c.logger.Info("controller started",
		"markets", len(c.markets),
		"quote_interval", c.cfg.Strategy.QuoteInterval,
	)

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()

		case update, ok := <-c.feed.BookUpdates():
			if !ok {
				c.shutdown()
				return nil
			}
			c.onBookUpdate(update)

		case fill := <-c.exec.Fills():
			c.onFill(ctx, fill)

		case <-quoteTicker.C:
			now := time.Now()
			for ticker := range c.markets {
				c.quoteCycle(ctx, ticker, now)
			}

		case <-snapshotTicker.C:
			c.persistPnLSnapshot(ctx)

		case t := <-hourlyReset.C:
			c.store.ResetHourly()
			c.logger.Info("hourly PnL reset")
			hourlyReset.Reset(nextBoundary(t, time.Hour).Sub(t))

		case t := <-dailyReset.C:
			c.store.ResetDaily()
			c.logger.Info("daily PnL reset")
			dailyReset.Reset(nextBoundary(t, 24*time.Hour).Sub(t))
		}
	}
}

func nextBoundary(now time.Time, d time.Duration) time.Time {
	return now.Truncate(d).Add(d)
}

// shutdown cancels every resting order.
func (c *Controller) shutdown() {
	for ticker := range c.markets {
		if n := c.exec.CancelAll(ticker); n > 0 {
			c.logger.Info("cancelled resting orders on shutdown", "market", ticker, "count", n)
		}
	}
}

// onBookUpdate applies an update and feeds mid-price moves into the
// market's volatility estimator.
func (c *Controller) onBookUpdate(update market.BookUpdate) {
	ms, ok := c.markets[update.MarketID]
	if !ok {
		return
	}

	ms.builder.Apply(update)

	book, ok := ms.builder.Book()
	if !ok {
		return
	}
	mid, ok := book.MidPrice()
	if !ok {
		return
	}
	if ms.lastMid == nil || !ms.lastMid.Equal(mid) {
		ms.engine.ObservePrice(mid)
		ms.lastMid = &mid
	}
}

// onFill routes a fill into the state store, persistence and the stream,
// and releases the quote slot of any order the fill completed.
func (c *Controller) onFill(ctx context.Context, fill types.Fill) {
	if !c.store.ApplyFill(fill) {
		return
	}

	if c.repo != nil {
		if err := c.repo.SaveFill(ctx, fill); err != nil {
			c.logger.Error("persist fill", "error", err, "fill_id", fill.ID)
		}
	}

	if ms, ok := c.markets[fill.MarketID]; ok {
		c.releaseFilledSlots(ctx, ms)
	}

	if c.broadcaster != nil {
		c.broadcaster.Broadcast(api.NewFillEvent(
			fill,
			c.store.NetInventory(fill.MarketID),
			c.store.RealizedPnL().StringFixed(2),
		))
	}
}

// releaseFilledSlots clears quote slots whose orders went terminal and
// persists their final state.
func (c *Controller) releaseFilledSlots(ctx context.Context, ms *marketState) {
	for _, slot := range []execution.QuoteSlot{execution.SlotYesBid, execution.SlotYesAsk} {
		var tracked *types.Order
		switch slot {
		case execution.SlotYesBid:
			tracked = ms.orders.YesBid
		case execution.SlotYesAsk:
			tracked = ms.orders.YesAsk
		}
		if tracked == nil {
			continue
		}

		current, ok := c.exec.Order(tracked.ID)
		if !ok {
			ms.orders.Clear(slot)
			continue
		}
		c.saveOrder(ctx, current)
		if current.Status.IsTerminal() {
			ms.orders.Clear(slot)
		} else {
			ms.orders.Set(slot, current)
		}
	}
}

// quoteCycle runs the full pipeline for one market: book snapshot →
// strategy → risk → order reconciliation.
func (c *Controller) quoteCycle(ctx context.Context, ticker string, now time.Time) {
	ms := c.markets[ticker]

	book, ok := ms.builder.Book()
	if !ok {
		return
	}
	mid, ok := book.MidPrice()
	if !ok {
		return
	}

	tts := ms.cfg.SettlementTime.Sub(now).Hours()
	inventory := c.store.NetInventory(ticker)

	quotes := ms.engine.GenerateQuotes(strategy.Input{
		MarketID:         ticker,
		MidPrice:         mid,
		Inventory:        inventory,
		MaxInventory:     c.cfg.Strategy.MaxInventory,
		BaseSize:         c.cfg.Strategy.BaseSize,
		TimeToSettlement: tts,
		Timestamp:        now,
	})

	// The tracked quote slots are about to be reconciled against the new
	// quotes, so they don't count as pending exposure: a kept or amended
	// order replaces itself, it doesn't stack.
	requoted := make(map[string]bool, 2)
	if ms.orders.YesBid != nil {
		requoted[ms.orders.YesBid.ID] = true
	}
	if ms.orders.YesAsk != nil {
		requoted[ms.orders.YesAsk.ID] = true
	}
	pendingBid, pendingAsk := c.pendingExposure(ticker, requoted)
	riskCtx := risk.Context{
		Now:                now,
		CurrentInventory:   inventory,
		MaxInventory:       c.cfg.Strategy.MaxInventory,
		Positions:          c.store.Positions(),
		RealizedPnL:        c.store.RealizedPnL(),
		UnrealizedPnL:      c.store.UnrealizedPnL(ticker, mid),
		HourlyPnL:          c.store.HourlyPnL(),
		DailyPnL:           c.store.DailyPnL(),
		TimeToSettlement:   tts,
		Volatility:         ms.engine.Volatility(),
		Book:               book,
		PendingBidExposure: pendingBid,
		PendingAskExposure: pendingAsk,
	}

	decision := c.riskMgr.Evaluate(quotes, riskCtx)

	switch decision.Action {
	case risk.Block:
		// Pull resting orders rather than leave them exposed to a market
		// the rules no longer trust.
		if n := c.exec.CancelAll(ticker); n > 0 {
			c.logger.Info("cancelled resting orders on risk block",
				"market", ticker, "count", n)
			ms.orders = execution.QuoteOrders{MarketID: ticker}
		}
		if c.broadcaster != nil {
			c.broadcaster.Broadcast(api.NewBlockEvent(ticker, decision.Reason, now))
			if decision.TriggerKillSwitch {
				c.broadcaster.Broadcast(api.NewKillEvent(true, c.riskMgr.KillSwitch().Reason(), now))
			}
		}
		return

	case risk.Modify:
		quotes = *decision.Modified
	}

	c.reconcile(ctx, ms, quotes, book)

	if c.broadcaster != nil {
		c.broadcaster.Broadcast(api.NewQuoteEvent(quotes))
	}
}

// pendingExposure sums the remaining size of resting orders by the
// direction they move net inventory. Buying YES or selling NO goes long.
// Orders in exclude are skipped.
func (c *Controller) pendingExposure(ticker string, exclude map[string]bool) (bid, ask int) {
	for _, order := range c.exec.OpenOrders(ticker) {
		if exclude[order.ID] {
			continue
		}
		long := (order.Side == types.SideYes) == (order.OrderSide == types.Buy)
		if long {
			bid += order.RemainingSize()
		} else {
			ask += order.RemainingSize()
		}
	}
	return bid, ask
}

// reconcile converges resting orders onto the approved quotes.
func (c *Controller) reconcile(ctx context.Context, ms *marketState, quotes types.QuoteSet, book *market.OrderBook) {
	for _, action := range c.differ.Diff(quotes, &ms.orders) {
		switch action.Type {
		case execution.ActionKeep:
			continue

		case execution.ActionCancel:
			if c.exec.Cancel(action.OrderID) {
				if order, ok := c.exec.Order(action.OrderID); ok {
					c.saveOrder(ctx, order)
				}
			}
			ms.orders.Clear(action.Slot)

		case execution.ActionNew:
			order := c.exec.Submit(*action.Request, book)
			c.saveOrder(ctx, order)
			if order.Status.IsActive() {
				ms.orders.Set(action.Slot, order)
			}

		case execution.ActionAmend:
			if c.exec.Cancel(action.OrderID) {
				if cancelled, ok := c.exec.Order(action.OrderID); ok {
					c.saveOrder(ctx, cancelled)
				}
			}
			order := c.exec.Submit(*action.Request, book)
			c.saveOrder(ctx, order)
			if order.Status.IsActive() {
				ms.orders.Set(action.Slot, order)
			} else {
				ms.orders.Clear(action.Slot)
			}
		}
	}
}

func (c *Controller) saveOrder(ctx context.Context, order types.Order) {
	if c.repo == nil {
		return
	}
	if err := c.repo.SaveOrder(ctx, order); err != nil {
		c.logger.Error("persist order", "error", err, "order_id", order.ID)
	}
}

func (c *Controller) persistPnLSnapshot(ctx context.Context) {
	if c.repo == nil {
		return
	}

	unrealized := decimal.Zero
	for ticker, ms := range c.markets {
		if book, ok := ms.builder.Book(); ok {
			if mid, ok := book.MidPrice(); ok {
				unrealized = unrealized.Add(c.store.UnrealizedPnL(ticker, mid))
			}
		}
	}

	rec := db.PnLRecord{
		Realized:   c.store.RealizedPnL(),
		Unrealized: unrealized,
		Hourly:     c.store.HourlyPnL(),
		Daily:      c.store.DailyPnL(),
		TotalFees:  c.store.TotalFees(),
		TakenAt:    time.Now(),
	}
	if err := c.repo.SavePnLSnapshot(ctx, rec); err != nil {
		c.logger.Error("persist pnl snapshot", "error", err)
	}
}
