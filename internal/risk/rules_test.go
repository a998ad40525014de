package risk

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kalshi-mm/internal/market"
	"kalshi-mm/pkg/types"
)

func testQuotes() types.QuoteSet {
	return types.QuoteSet{
		MarketID: "KXBTC-TEST",
		Yes: types.Quote{
			BidPrice: types.MustPrice("0.48"),
			BidSize:  types.MustQuantity(100),
			AskPrice: types.MustPrice("0.52"),
			AskSize:  types.MustQuantity(100),
		},
		Timestamp: time.Now(),
	}
}

func testContext(now time.Time) Context {
	return Context{
		Now:              now,
		CurrentInventory: 0,
		MaxInventory:     500,
		TimeToSettlement: 2.0,
		Book: &market.OrderBook{
			MarketID:  "KXBTC-TEST",
			Timestamp: now.Add(-time.Second),
		},
	}
}

func TestStaleDataRule(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rule := StaleDataRule{MaxAge: 10 * time.Second}

	fresh := testContext(now)
	if d := rule.Evaluate(testQuotes(), fresh); d.Action != Allow {
		t.Errorf("fresh book: action = %s, want allow", d.Action)
	}

	stale := testContext(now)
	stale.Book.Timestamp = now.Add(-30 * time.Second)
	d := rule.Evaluate(testQuotes(), stale)
	if d.Action != Block {
		t.Errorf("stale book: action = %s, want block", d.Action)
	}
	if !strings.Contains(d.Reason, "stale_data") {
		t.Errorf("reason %q should name the rule", d.Reason)
	}

	missing := testContext(now)
	missing.Book = nil
	if d := rule.Evaluate(testQuotes(), missing); d.Action != Block {
		t.Errorf("missing book: action = %s, want block", d.Action)
	}
}

func TestStaleDataRuleUsesContextClock(t *testing.T) {
	t.Parallel()

	// A synthetic Now far in the past must make a "future" book fresh;
	// the rule never consults the wall clock.
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := testContext(past)

	rule := StaleDataRule{MaxAge: 10 * time.Second}
	if d := rule.Evaluate(testQuotes(), ctx); d.Action != Allow {
		t.Errorf("action = %s, want allow with synthetic clock", d.Action)
	}
}

func TestSettlementCutoffRule(t *testing.T) {
	t.Parallel()

	rule := SettlementCutoffRule{CutoffMinutes: 30}
	now := time.Now()

	ctx := testContext(now)
	ctx.TimeToSettlement = 2.0
	if d := rule.Evaluate(testQuotes(), ctx); d.Action != Allow {
		t.Errorf("2h out: action = %s, want allow", d.Action)
	}

	ctx.TimeToSettlement = 0.25 // 15 minutes
	if d := rule.Evaluate(testQuotes(), ctx); d.Action != Block {
		t.Errorf("15m out: action = %s, want block", d.Action)
	}

	ctx.TimeToSettlement = 0.5 // exactly at cutoff
	if d := rule.Evaluate(testQuotes(), ctx); d.Action != Block {
		t.Errorf("at cutoff: action = %s, want block", d.Action)
	}
}

func TestMaxInventoryRuleCountsPendingExposure(t *testing.T) {
	t.Parallel()

	rule := MaxInventoryRule{}
	now := time.Now()

	// Held 0, limit 150, quote bids 100: fine alone.
	ctx := testContext(now)
	ctx.MaxInventory = 150
	if d := rule.Evaluate(testQuotes(), ctx); d.Action != Allow {
		t.Errorf("no pending: action = %s, want allow", d.Action)
	}

	// Same quote with 80 contracts already resting on the bid: 0+80+100
	// exceeds 150 even though filled inventory is zero.
	ctx.PendingBidExposure = 80
	d := rule.Evaluate(testQuotes(), ctx)
	if d.Action != Block {
		t.Errorf("pending bids: action = %s, want block", d.Action)
	}
	if !strings.Contains(d.Reason, "max_inventory") {
		t.Errorf("reason %q should name the rule", d.Reason)
	}
}

func TestMaxInventoryRuleShortSide(t *testing.T) {
	t.Parallel()

	rule := MaxInventoryRule{}
	ctx := testContext(time.Now())
	ctx.MaxInventory = 150
	ctx.CurrentInventory = -100
	ctx.PendingAskExposure = 20

	// -100 - 20 - 100 = -220 < -150
	if d := rule.Evaluate(testQuotes(), ctx); d.Action != Block {
		t.Errorf("short side: action = %s, want block", d.Action)
	}
}

func TestMaxOrderSizeRuleCapsNotBlocks(t *testing.T) {
	t.Parallel()

	rule := MaxOrderSizeRule{MaxSize: 60}
	quotes := testQuotes() // both sides 100

	d := rule.Evaluate(quotes, testContext(time.Now()))
	if d.Action != Modify {
		t.Fatalf("action = %s, want modify", d.Action)
	}
	if d.Modified.Yes.BidSize.Value() != 60 || d.Modified.Yes.AskSize.Value() != 60 {
		t.Errorf("capped sizes = (%s, %s), want (60, 60)",
			d.Modified.Yes.BidSize, d.Modified.Yes.AskSize)
	}
	// Prices untouched.
	if !d.Modified.Yes.BidPrice.Equal(quotes.Yes.BidPrice) {
		t.Error("modify must not touch prices")
	}
}

func TestMaxOrderSizeRuleLeavesCompliantQuotesAlone(t *testing.T) {
	t.Parallel()

	rule := MaxOrderSizeRule{MaxSize: 200}
	if d := rule.Evaluate(testQuotes(), testContext(time.Now())); d.Action != Allow {
		t.Errorf("action = %s, want allow for compliant sizes", d.Action)
	}
}

func TestLossLimitRulesTriggerKillSwitch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule Rule
		set  func(*Context)
	}{
		{"hourly", HourlyLossLimitRule{MaxLoss: decimal.RequireFromString("50")},
			func(c *Context) { c.HourlyPnL = decimal.RequireFromString("-75") }},
		{"daily", DailyLossLimitRule{MaxLoss: decimal.RequireFromString("200")},
			func(c *Context) { c.DailyPnL = decimal.RequireFromString("-250") }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := testContext(time.Now())
			tt.set(&ctx)

			d := tt.rule.Evaluate(testQuotes(), ctx)
			if d.Action != Block {
				t.Errorf("action = %s, want block", d.Action)
			}
			if !d.TriggerKillSwitch {
				t.Error("loss limit breach must request kill-switch activation")
			}
			if !strings.Contains(d.Reason, tt.rule.Name()) {
				t.Errorf("reason %q should name the rule", d.Reason)
			}
		})
	}
}

func TestLossLimitRulesAllowWithinLimit(t *testing.T) {
	t.Parallel()

	ctx := testContext(time.Now())
	ctx.HourlyPnL = decimal.RequireFromString("-49")

	rule := HourlyLossLimitRule{MaxLoss: decimal.RequireFromString("50")}
	if d := rule.Evaluate(testQuotes(), ctx); d.Action != Allow {
		t.Errorf("action = %s, want allow within limit", d.Action)
	}
}
