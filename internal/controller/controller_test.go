package controller

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kalshi-mm/internal/api"
	"kalshi-mm/internal/config"
	"kalshi-mm/internal/exchange"
	"kalshi-mm/internal/execution"
	"kalshi-mm/internal/market"
	"kalshi-mm/internal/risk"
	"kalshi-mm/internal/state"
	"kalshi-mm/internal/strategy"
	"kalshi-mm/pkg/types"
)

const testTicker = "KXBTC-TEST"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Mode: "paper",
		Markets: []config.MarketConfig{
			{Ticker: testTicker, SettlementTime: time.Now().Add(24 * time.Hour)},
		},
		Strategy: config.StrategyConfig{
			MaxInventory:  150,
			BaseSize:      100,
			QuoteInterval: 100 * time.Millisecond,
			Components: strategy.Config{
				Volatility:  strategy.ComponentConfig{Type: "fixed", Params: map[string]string{"volatility": "0.1"}},
				Reservation: strategy.ComponentConfig{Type: "avellaneda_stoikov", Params: map[string]string{"gamma": "0.1"}},
				Skew:        strategy.ComponentConfig{Type: "linear", Params: map[string]string{"intensity": "0.01"}},
				Spread:      strategy.ComponentConfig{Type: "fixed", Params: map[string]string{"base_spread": "0.04", "min_spread": "0.02"}},
				Sizer:       strategy.ComponentConfig{Type: "asymmetric"},
			},
		},
		Risk: config.RiskConfig{
			FeeRate:   "0",
			RuleOrder: []string{"stale_data", "settlement_cutoff", "max_inventory", "max_order_size"},
			Rules: config.RuleLimits{
				StaleDataMaxAge: 5 * time.Second,
				CutoffMinutes:   30,
				MaxOrderSize:    200,
			},
			Differ: config.DifferConfig{PriceTolerance: "0.01", SizeTolerance: 5},
		},
		Feed:  config.FeedConfig{Interval: 100 * time.Millisecond, Seed: 1},
		Store: config.StoreConfig{SnapshotInterval: time.Minute},
	}
}

func newTestController(t *testing.T, cfg *config.Config) *Controller {
	t.Helper()
	logger := discardLogger()
	feed := exchange.NewMockFeed([]string{testTicker}, cfg.Feed.Interval, cfg.Feed.Seed, logger)
	exec := execution.NewPaperEngine(logger)
	store := state.NewStore(decimal.Zero, logger)

	c, err := New(cfg, feed, exec, store, nil, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func applySnapshot(t *testing.T, c *Controller, at time.Time) {
	t.Helper()
	level := func(cents, size int) market.PriceLevel {
		p, err := types.PriceFromCents(cents)
		if err != nil {
			t.Fatalf("price from cents %d: %v", cents, err)
		}
		return market.PriceLevel{Price: p, Size: size}
	}
	c.onBookUpdate(market.BookUpdate{
		MarketID:  testTicker,
		Type:      market.UpdateSnapshot,
		Bids:      []market.PriceLevel{level(48, 200), level(47, 300)},
		Asks:      []market.PriceLevel{level(52, 200), level(53, 300)},
		Timestamp: at,
	})
}

func TestQuoteCyclePlacesTwoSidedQuotes(t *testing.T) {
	t.Parallel()

	c := newTestController(t, testConfig())
	now := time.Now()
	applySnapshot(t, c, now)

	c.quoteCycle(context.Background(), testTicker, now)

	open := c.exec.OpenOrders(testTicker)
	if len(open) != 2 {
		t.Fatalf("open orders = %d, want 2", len(open))
	}

	ms := c.markets[testTicker]
	if ms.orders.YesBid == nil || ms.orders.YesAsk == nil {
		t.Fatalf("quote slots not tracked: bid=%v ask=%v", ms.orders.YesBid, ms.orders.YesAsk)
	}
	if !ms.orders.YesBid.Price.Equal(types.MustPrice("0.48")) {
		t.Errorf("bid price = %s, want 0.48", ms.orders.YesBid.Price)
	}
	if !ms.orders.YesAsk.Price.Equal(types.MustPrice("0.52")) {
		t.Errorf("ask price = %s, want 0.52", ms.orders.YesAsk.Price)
	}
}

func TestQuoteCycleIsIdempotentWithinTolerance(t *testing.T) {
	t.Parallel()

	c := newTestController(t, testConfig())
	now := time.Now()
	applySnapshot(t, c, now)

	c.quoteCycle(context.Background(), testTicker, now)
	first := c.exec.OpenOrders(testTicker)

	c.quoteCycle(context.Background(), testTicker, now.Add(time.Second))
	second := c.exec.OpenOrders(testTicker)

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("open orders = %d then %d, want 2 and 2", len(first), len(second))
	}
	ids := map[string]bool{first[0].ID: true, first[1].ID: true}
	for _, o := range second {
		if !ids[o.ID] {
			t.Errorf("order %s replaced despite unchanged quotes", o.ID)
		}
	}
}

func TestQuoteCycleSkipsWithoutBook(t *testing.T) {
	t.Parallel()

	c := newTestController(t, testConfig())
	c.quoteCycle(context.Background(), testTicker, time.Now())

	if n := len(c.exec.OpenOrders(testTicker)); n != 0 {
		t.Fatalf("open orders = %d, want 0 before any snapshot", n)
	}
}

func TestKillSwitchBlocksAndCancelsRestingOrders(t *testing.T) {
	t.Parallel()

	c := newTestController(t, testConfig())
	now := time.Now()
	applySnapshot(t, c, now)

	c.quoteCycle(context.Background(), testTicker, now)
	if n := len(c.exec.OpenOrders(testTicker)); n != 2 {
		t.Fatalf("open orders = %d, want 2", n)
	}

	c.ActivateKillSwitch("manual halt")
	c.quoteCycle(context.Background(), testTicker, now.Add(time.Second))

	if n := len(c.exec.OpenOrders(testTicker)); n != 0 {
		t.Fatalf("open orders = %d after kill switch, want 0", n)
	}
	ms := c.markets[testTicker]
	if ms.orders.YesBid != nil || ms.orders.YesAsk != nil {
		t.Error("quote slots should be cleared after a risk block")
	}
}

func TestStaleBookBlocksQuoting(t *testing.T) {
	t.Parallel()

	c := newTestController(t, testConfig())
	now := time.Now()
	applySnapshot(t, c, now.Add(-time.Minute))

	c.quoteCycle(context.Background(), testTicker, now)

	if n := len(c.exec.OpenOrders(testTicker)); n != 0 {
		t.Fatalf("open orders = %d on a stale book, want 0", n)
	}
}

func TestOnFillUpdatesStoreOnce(t *testing.T) {
	t.Parallel()

	c := newTestController(t, testConfig())
	fill := types.Fill{
		ID:          "fill_ctrl_1",
		OrderID:     "paper_ctrl_1",
		MarketID:    testTicker,
		Side:        types.SideYes,
		OrderSide:   types.Buy,
		Price:       types.MustPrice("0.50"),
		Size:        types.MustQuantity(100),
		Timestamp:   time.Now(),
		IsSimulated: true,
	}

	ctx := context.Background()
	c.onFill(ctx, fill)
	c.onFill(ctx, fill)

	if inv := c.store.NetInventory(testTicker); inv != 100 {
		t.Fatalf("net inventory = %d, want 100 after duplicate delivery", inv)
	}
}

func TestPendingExposureSplitsByDirection(t *testing.T) {
	t.Parallel()

	c := newTestController(t, testConfig())
	now := time.Now()
	applySnapshot(t, c, now)

	book, _ := c.markets[testTicker].builder.Book()
	c.exec.Submit(types.NewOrderRequest(testTicker, types.SideYes, types.Buy, types.MustPrice("0.40"), types.MustQuantity(80)), book)
	c.exec.Submit(types.NewOrderRequest(testTicker, types.SideYes, types.Sell, types.MustPrice("0.60"), types.MustQuantity(30)), book)
	c.exec.Submit(types.NewOrderRequest(testTicker, types.SideNo, types.Sell, types.MustPrice("0.60"), types.MustQuantity(20)), book)

	bid, ask := c.pendingExposure(testTicker, nil)
	if bid != 100 {
		t.Errorf("pending bid exposure = %d, want 100 (YES buy + NO sell)", bid)
	}
	if ask != 30 {
		t.Errorf("pending ask exposure = %d, want 30", ask)
	}
}

func TestSnapshotReportsMarketAndPnLState(t *testing.T) {
	t.Parallel()

	c := newTestController(t, testConfig())
	now := time.Now()
	applySnapshot(t, c, now)

	c.onFill(context.Background(), types.Fill{
		ID:        "fill_snap_1",
		OrderID:   "paper_snap_1",
		MarketID:  testTicker,
		Side:      types.SideYes,
		OrderSide: types.Buy,
		Price:     types.MustPrice("0.40"),
		Size:      types.MustQuantity(100),
		Timestamp: now,
	})

	snap := c.Snapshot()
	if snap.Mode != "paper" {
		t.Errorf("mode = %q, want paper", snap.Mode)
	}
	if len(snap.Markets) != 1 {
		t.Fatalf("markets = %d, want 1", len(snap.Markets))
	}

	mkt := snap.Markets[0]
	if mkt.Ticker != testTicker {
		t.Errorf("ticker = %q", mkt.Ticker)
	}
	if mkt.MidPrice != "0.5" {
		t.Errorf("mid price = %q, want 0.5", mkt.MidPrice)
	}
	if mkt.Position.YesQuantity != 100 {
		t.Errorf("yes quantity = %d, want 100", mkt.Position.YesQuantity)
	}
	// 100 YES at 0.40 marked at 0.50.
	if mkt.Position.UnrealizedPnL != "10.00" {
		t.Errorf("unrealized = %q, want 10.00", mkt.Position.UnrealizedPnL)
	}
	if snap.UnrealizedPnL != "10.00" {
		t.Errorf("total unrealized = %q, want 10.00", snap.UnrealizedPnL)
	}
	if snap.KillSwitch.Active {
		t.Error("kill switch should be inactive")
	}
}

func TestKillSwitchOperatorRoundTrip(t *testing.T) {
	t.Parallel()

	c := newTestController(t, testConfig())
	c.ActivateKillSwitch("operator: drill")

	snap := c.Snapshot()
	if !snap.KillSwitch.Active {
		t.Fatal("kill switch should be active")
	}
	if !strings.Contains(snap.KillSwitch.Reason, "drill") {
		t.Errorf("reason = %q", snap.KillSwitch.Reason)
	}
	if snap.KillSwitch.ActivatedAt == nil {
		t.Error("activation time missing")
	}

	c.ResetKillSwitch()
	if c.Snapshot().KillSwitch.Active {
		t.Error("kill switch should clear on reset")
	}
}

func TestRulesFromConfigHonorsOrder(t *testing.T) {
	t.Parallel()

	cfg := config.RiskConfig{
		RuleOrder: []string{"daily_loss_limit", "stale_data"},
		Rules: config.RuleLimits{
			StaleDataMaxAge: time.Second,
			DailyLossLimit:  "500",
		},
	}
	rules, err := rulesFromConfig(cfg)
	if err != nil {
		t.Fatalf("rulesFromConfig: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(rules))
	}
	if _, ok := rules[0].(risk.DailyLossLimitRule); !ok {
		t.Errorf("first rule = %T, want DailyLossLimitRule", rules[0])
	}
	if _, ok := rules[1].(risk.StaleDataRule); !ok {
		t.Errorf("second rule = %T, want StaleDataRule", rules[1])
	}
}

func TestRulesFromConfigRejectsUnknownRule(t *testing.T) {
	t.Parallel()

	_, err := rulesFromConfig(config.RiskConfig{RuleOrder: []string{"vibes"}})
	if err == nil {
		t.Fatal("expected error for unknown rule")
	}
}

func TestRulesFromConfigRejectsBadLimit(t *testing.T) {
	t.Parallel()

	_, err := rulesFromConfig(config.RiskConfig{
		RuleOrder: []string{"hourly_loss_limit"},
		Rules:     config.RuleLimits{HourlyLossLimit: "lots"},
	})
	if err == nil {
		t.Fatal("expected error for malformed loss limit")
	}
}

type recordingBroadcaster struct {
	events []api.Event
}

func (r *recordingBroadcaster) Broadcast(evt api.Event) { r.events = append(r.events, evt) }

func TestRiskBlockBroadcastsEvent(t *testing.T) {
	t.Parallel()

	c := newTestController(t, testConfig())
	rec := &recordingBroadcaster{}
	c.SetBroadcaster(rec)

	now := time.Now()
	applySnapshot(t, c, now.Add(-time.Minute))
	c.quoteCycle(context.Background(), testTicker, now)

	found := false
	for _, evt := range rec.events {
		if evt.Type == "block" {
			found = true
		}
	}
	if !found {
		t.Errorf("no block event broadcast, got %d events", len(rec.events))
	}
}
