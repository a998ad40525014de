// Package strategy implements the Avellaneda-Stoikov quoting pipeline for
// binary prediction markets (prices in [0.01, 0.99]).
//
// The core idea: post a bid below and an ask above a "reservation price" that
// accounts for inventory risk. When the bot is long, it lowers quotes to
// attract sellers; when short, it raises quotes to attract buyers.
//
// Per-cycle flow:
//  1. Read current volatility from the estimator.
//  2. Compute reservation price:  r = mid - q / (γ * σ² * T)
//  3. Compute inventory skew and half-spread.
//  4. Derive bid = (r - skew) - δ/2, ask = (r - skew) + δ/2, clamped to
//     [0.01, 0.99], with a recenter fallback if clamping crosses the quotes.
//  5. Size each side asymmetrically against the inventory ratio.
//
// Everything here is pure computation over the StrategyInput snapshot; the
// controller owns sequencing and the estimator's write side.
package strategy

import (
	"math"

	"github.com/shopspring/decimal"

	"kalshi-mm/pkg/types"
)

// VolatilityEstimator maintains a scalar volatility estimate from a stream
// of price observations.
type VolatilityEstimator interface {
	// Update feeds one price observation into the estimate.
	Update(p types.Price)
	// Volatility returns the current estimate, always non-negative.
	Volatility() decimal.Decimal
	// Ready reports whether enough observations have been seen for the
	// estimate to be trusted over the configured initial value.
	Ready() bool
	// Reset restores the initial estimate and clears observation state.
	Reset()
}

// FixedVolatility is a constant estimator. Update is a no-op and Ready is
// always true. Useful for backtests and as a conservative fallback.
type FixedVolatility struct {
	vol decimal.Decimal
}

func NewFixedVolatility(vol decimal.Decimal) *FixedVolatility {
	return &FixedVolatility{vol: vol}
}

func (f *FixedVolatility) Update(types.Price)          {}
func (f *FixedVolatility) Volatility() decimal.Decimal { return f.vol }
func (f *FixedVolatility) Ready() bool                 { return true }
func (f *FixedVolatility) Reset()                      {}

// EWMAVolatility estimates volatility as an exponentially weighted moving
// average of squared simple returns:
//
//	r_t = (p_t - p_{t-1}) / p_{t-1}
//	σ²_t = α·r_t² + (1-α)·σ²_{t-1}
//
// The first observation only sets the return baseline. Ready flips true once
// minSamples observations have arrived.
type EWMAVolatility struct {
	alpha      decimal.Decimal
	initialVol decimal.Decimal
	minSamples int

	variance  decimal.Decimal
	lastPrice *decimal.Decimal
	samples   int
}

func NewEWMAVolatility(alpha, initialVol decimal.Decimal, minSamples int) *EWMAVolatility {
	return &EWMAVolatility{
		alpha:      alpha,
		initialVol: initialVol,
		minSamples: minSamples,
		variance:   initialVol.Mul(initialVol),
	}
}

func (e *EWMAVolatility) Update(p types.Price) {
	v := p.Value()
	e.samples++

	if e.lastPrice == nil {
		e.lastPrice = &v
		return
	}

	ret := v.Sub(*e.lastPrice).Div(*e.lastPrice)
	weighted := e.alpha.Mul(ret.Mul(ret))
	carried := decimal.New(1, 0).Sub(e.alpha).Mul(e.variance)
	e.variance = weighted.Add(carried)
	e.lastPrice = &v
}

// Volatility returns sqrt(σ²). The square root goes through float64; the
// estimate feeds spread width, not ledger arithmetic, so the rounding is
// acceptable.
func (e *EWMAVolatility) Volatility() decimal.Decimal {
	return decimal.NewFromFloat(math.Sqrt(e.variance.InexactFloat64()))
}

func (e *EWMAVolatility) Ready() bool { return e.samples >= e.minSamples }

func (e *EWMAVolatility) Reset() {
	e.variance = e.initialVol.Mul(e.initialVol)
	e.lastPrice = nil
	e.samples = 0
}
