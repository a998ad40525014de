package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"kalshi-mm/internal/market"
	"kalshi-mm/pkg/types"
)

// Context is a read-only snapshot assembled once per evaluation cycle.
// Rules never read ambient state: the evaluation clock (Now), positions,
// PnL accumulators and pending order exposure all arrive through here, so
// rules stay pure and testable with synthetic timestamps.
type Context struct {
	// Now is the evaluation timestamp. Time-based rules compare against
	// this, never against the wall clock.
	Now time.Time

	CurrentInventory int // signed net inventory for the quoted market
	MaxInventory     int

	Positions map[string]types.Position

	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	HourlyPnL     decimal.Decimal
	DailyPnL      decimal.Decimal

	TimeToSettlement float64
	Volatility       decimal.Decimal

	Book *market.OrderBook

	// Resting-order exposure, in contracts, per quoted direction. Counted
	// alongside filled inventory so resting plus new orders cannot jointly
	// breach the position limit.
	PendingBidExposure int
	PendingAskExposure int
}

// TotalPnL returns realized + unrealized.
func (c Context) TotalPnL() decimal.Decimal {
	return c.RealizedPnL.Add(c.UnrealizedPnL)
}

// Action is the outcome category of a rule or pipeline evaluation.
type Action string

const (
	Allow  Action = "allow"
	Modify Action = "modify"
	Block  Action = "block"
)

// Decision is the result of evaluating one rule, or the whole pipeline.
// Reason is operator-facing text; for blocks and kill trips it names the
// rule that fired.
type Decision struct {
	Action            Action
	Reason            string
	Modified          *types.QuoteSet
	TriggerKillSwitch bool
}

// AllowDecision passes quotes through unchanged.
func AllowDecision() Decision {
	return Decision{Action: Allow}
}

// ModifyDecision passes amended quotes to the next rule.
func ModifyDecision(reason string, modified types.QuoteSet) Decision {
	return Decision{Action: Modify, Reason: reason, Modified: &modified}
}

// BlockDecision stops the current cycle.
func BlockDecision(reason string) Decision {
	return Decision{Action: Block, Reason: reason}
}

// BlockAndKill stops the cycle and requests kill-switch activation.
func BlockAndKill(reason string) Decision {
	return Decision{Action: Block, Reason: reason, TriggerKillSwitch: true}
}

// Rule evaluates proposed quotes against the cycle snapshot. Rules must not
// fail for well-formed input; misconfiguration is a construction-time error.
type Rule interface {
	Name() string
	Evaluate(quotes types.QuoteSet, ctx Context) Decision
}
