package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"kalshi-mm/pkg/types"
)

// StaleDataRule blocks quoting when the order book has not updated within
// MaxAge. Quoting against a stale book risks filling at prices the market
// has already left behind.
type StaleDataRule struct {
	MaxAge time.Duration
}

func (r StaleDataRule) Name() string { return "stale_data" }

func (r StaleDataRule) Evaluate(_ types.QuoteSet, ctx Context) Decision {
	if ctx.Book == nil {
		return BlockDecision("stale_data: no order book available")
	}
	age := ctx.Now.Sub(ctx.Book.Timestamp)
	if age > r.MaxAge {
		return BlockDecision(fmt.Sprintf("stale_data: book is %.1fs old (max %.1fs)",
			age.Seconds(), r.MaxAge.Seconds()))
	}
	return AllowDecision()
}

// SettlementCutoffRule blocks quoting inside the final window before
// settlement, where fills are near-certain to expire in the money against
// the bot.
type SettlementCutoffRule struct {
	CutoffMinutes float64
}

func (r SettlementCutoffRule) Name() string { return "settlement_cutoff" }

func (r SettlementCutoffRule) Evaluate(_ types.QuoteSet, ctx Context) Decision {
	cutoff := r.CutoffMinutes / 60
	if ctx.TimeToSettlement <= cutoff {
		return BlockDecision(fmt.Sprintf(
			"settlement_cutoff: %.2fh to settlement is inside the %.0f minute cutoff",
			ctx.TimeToSettlement, r.CutoffMinutes))
	}
	return AllowDecision()
}

// MaxInventoryRule blocks quotes that could push net inventory past the
// limit. It counts resting-order exposure on each side, not just filled
// inventory: a bid of 40 resting plus a new bid of 70 must not pass just
// because filled inventory is zero.
type MaxInventoryRule struct{}

func (r MaxInventoryRule) Name() string { return "max_inventory" }

func (r MaxInventoryRule) Evaluate(quotes types.QuoteSet, ctx Context) Decision {
	if ctx.MaxInventory <= 0 {
		return AllowDecision()
	}

	longWorst := ctx.CurrentInventory + ctx.PendingBidExposure + quotes.Yes.BidSize.Value()
	if longWorst > ctx.MaxInventory {
		return BlockDecision(fmt.Sprintf(
			"max_inventory: potential long %d exceeds limit %d (held %d, resting bids %d)",
			longWorst, ctx.MaxInventory, ctx.CurrentInventory, ctx.PendingBidExposure))
	}

	shortWorst := ctx.CurrentInventory - ctx.PendingAskExposure - quotes.Yes.AskSize.Value()
	if shortWorst < -ctx.MaxInventory {
		return BlockDecision(fmt.Sprintf(
			"max_inventory: potential short %d exceeds limit %d (held %d, resting asks %d)",
			shortWorst, ctx.MaxInventory, ctx.CurrentInventory, ctx.PendingAskExposure))
	}

	return AllowDecision()
}

// MaxOrderSizeRule caps oversized quote sides down to MaxSize. It only ever
// modifies, never blocks; an oversized quote is a sizing mistake, not a
// reason to stop quoting.
type MaxOrderSizeRule struct {
	MaxSize int
}

func (r MaxOrderSizeRule) Name() string { return "max_order_size" }

func (r MaxOrderSizeRule) Evaluate(quotes types.QuoteSet, ctx Context) Decision {
	if r.MaxSize <= 0 {
		return AllowDecision()
	}

	capped := quotes
	changed := false
	if capped.Yes.BidSize.Value() > r.MaxSize {
		capped.Yes.BidSize = types.MustQuantity(r.MaxSize)
		changed = true
	}
	if capped.Yes.AskSize.Value() > r.MaxSize {
		capped.Yes.AskSize = types.MustQuantity(r.MaxSize)
		changed = true
	}

	if !changed {
		return AllowDecision()
	}
	return ModifyDecision(fmt.Sprintf("max_order_size: capped to %d contracts", r.MaxSize), capped)
}

// HourlyLossLimitRule blocks and trips the kill switch once the hourly PnL
// accumulator falls below -MaxLoss. Loss limits are the only rules that
// escalate to the kill switch: every other block is transient, but bleeding
// money is a stop-the-world condition.
type HourlyLossLimitRule struct {
	MaxLoss decimal.Decimal
}

func (r HourlyLossLimitRule) Name() string { return "hourly_loss_limit" }

func (r HourlyLossLimitRule) Evaluate(_ types.QuoteSet, ctx Context) Decision {
	return lossLimitDecision(r.Name(), "hourly", ctx.HourlyPnL, r.MaxLoss)
}

// DailyLossLimitRule is the daily counterpart of HourlyLossLimitRule.
type DailyLossLimitRule struct {
	MaxLoss decimal.Decimal
}

func (r DailyLossLimitRule) Name() string { return "daily_loss_limit" }

func (r DailyLossLimitRule) Evaluate(_ types.QuoteSet, ctx Context) Decision {
	return lossLimitDecision(r.Name(), "daily", ctx.DailyPnL, r.MaxLoss)
}

func lossLimitDecision(rule, window string, pnl, maxLoss decimal.Decimal) Decision {
	if maxLoss.Sign() <= 0 {
		return AllowDecision()
	}
	if pnl.LessThan(maxLoss.Neg()) {
		return BlockAndKill(fmt.Sprintf("%s: %s loss %s exceeds limit %s",
			rule, window, pnl.StringFixed(2), maxLoss.StringFixed(2)))
	}
	return AllowDecision()
}
