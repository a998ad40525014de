package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position tracks holdings in a single market: quantities of YES and NO
// contracts along with average entry prices for PnL calculation.
//
// Invariants: quantities are never negative, and an average price is nil
// exactly when the corresponding quantity is zero. Selling more than held is
// clamped to zero rather than rejected (the state store logs it as a
// probable upstream bug).
type Position struct {
	MarketID    string
	YesQuantity int
	NoQuantity  int
	AvgYesPrice *Price // nil if no YES position
	AvgNoPrice  *Price // nil if no NO position
}

// EmptyPosition creates a flat position for a market.
func EmptyPosition(marketID string) Position {
	return Position{MarketID: marketID}
}

// NetInventory returns the signed inventory: positive = net long YES,
// negative = net long NO. This is the "q" input to the strategy engine.
func (p Position) NetInventory() int { return p.YesQuantity - p.NoQuantity }

// IsEmpty reports whether the position holds no contracts on either side.
func (p Position) IsEmpty() bool { return p.YesQuantity == 0 && p.NoQuantity == 0 }

// NotionalExposure returns total entry-cost notional across both sides.
func (p Position) NotionalExposure() decimal.Decimal {
	total := decimal.Zero
	if p.AvgYesPrice != nil {
		total = total.Add(p.AvgYesPrice.Value().Mul(decimal.New(int64(p.YesQuantity), 0)))
	}
	if p.AvgNoPrice != nil {
		total = total.Add(p.AvgNoPrice.Value().Mul(decimal.New(int64(p.NoQuantity), 0)))
	}
	return total
}

// WithFill returns a copy updated for a fill: buys grow the side at a
// size-weighted average cost, sells shrink it (clamped at zero) and leave
// the average untouched while any quantity remains.
func (p Position) WithFill(side Side, orderSide OrderSide, qty int, price Price) Position {
	if side == SideYes {
		p.YesQuantity, p.AvgYesPrice = applySideFill(p.YesQuantity, p.AvgYesPrice, orderSide, qty, price)
	} else {
		p.NoQuantity, p.AvgNoPrice = applySideFill(p.NoQuantity, p.AvgNoPrice, orderSide, qty, price)
	}
	return p
}

func applySideFill(curQty int, curAvg *Price, orderSide OrderSide, qty int, price Price) (int, *Price) {
	if orderSide == Buy {
		newAvg := weightedAvgPrice(curQty, curAvg, qty, price)
		return curQty + qty, &newAvg
	}
	newQty := curQty - qty
	if newQty <= 0 {
		return 0, nil
	}
	return newQty, curAvg
}

func weightedAvgPrice(curQty int, curAvg *Price, fillQty int, fillPrice Price) Price {
	if curQty == 0 || curAvg == nil {
		return fillPrice
	}
	curValue := curAvg.Value().Mul(decimal.New(int64(curQty), 0))
	fillValue := fillPrice.Value().Mul(decimal.New(int64(fillQty), 0))
	avg := curValue.Add(fillValue).Div(decimal.New(int64(curQty+fillQty), 0))
	// The weighted average of two valid prices is always in range.
	return Price{value: avg}
}

// PnLSnapshot is a point-in-time view of profit and loss, both realized
// (closed trades, net of fees) and unrealized (mark-to-market).
type PnLSnapshot struct {
	Timestamp     time.Time
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	TotalPnL      decimal.Decimal
	Positions     map[string]Position
}

// NewPnLSnapshot computes unrealized PnL from open positions at the given
// YES mark prices. The NO side is marked at the complement price.
func NewPnLSnapshot(positions map[string]Position, marks map[string]Price, realized decimal.Decimal, at time.Time) PnLSnapshot {
	unrealized := decimal.Zero
	for marketID, pos := range positions {
		mark, ok := marks[marketID]
		if !ok {
			continue
		}
		unrealized = unrealized.Add(UnrealizedPnL(pos, mark))
	}
	return PnLSnapshot{
		Timestamp:     at,
		RealizedPnL:   realized,
		UnrealizedPnL: unrealized,
		TotalPnL:      realized.Add(unrealized),
		Positions:     positions,
	}
}

// UnrealizedPnL marks a position to the given YES price. Each side
// contributes zero when its quantity is zero.
func UnrealizedPnL(pos Position, mark Price) decimal.Decimal {
	pnl := decimal.Zero
	if pos.YesQuantity > 0 && pos.AvgYesPrice != nil {
		pnl = pnl.Add(mark.Value().Sub(pos.AvgYesPrice.Value()).Mul(decimal.New(int64(pos.YesQuantity), 0)))
	}
	if pos.NoQuantity > 0 && pos.AvgNoPrice != nil {
		noMark := mark.Complement()
		pnl = pnl.Add(noMark.Value().Sub(pos.AvgNoPrice.Value()).Mul(decimal.New(int64(pos.NoQuantity), 0)))
	}
	return pnl
}
