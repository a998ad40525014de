package strategy

import (
	"math"

	"github.com/shopspring/decimal"

	"kalshi-mm/pkg/types"
)

// The four calculator interfaces below are pure functions over the current
// market snapshot. Each has exactly one implementation method so variants
// stay interchangeable behind configuration.

// ReservationCalculator produces the inventory-adjusted fair value the
// engine quotes around. Output is deliberately unclamped; the engine clamps
// once at the end of the pipeline.
type ReservationCalculator interface {
	Reservation(mid types.Price, inventory int, volatility decimal.Decimal, timeToSettlement float64) decimal.Decimal
}

// SkewCalculator produces a signed shift applied to both quotes to
// encourage inventory-reducing trades.
type SkewCalculator interface {
	Skew(inventory, maxInventory int, volatility decimal.Decimal) decimal.Decimal
}

// SpreadCalculator produces the non-negative half-spread: the distance from
// the adjusted mid to each one-sided quote.
type SpreadCalculator interface {
	HalfSpread(volatility decimal.Decimal, inventory, maxInventory int, timeToSettlement float64) decimal.Decimal
}

// QuoteSizer produces bid and ask sizes, both non-negative. A zero size
// means the sizer wants that side unquoted; the engine floors to 1 so a
// placeable quote always exists.
type QuoteSizer interface {
	Sizes(inventory, maxInventory, baseSize int) (bidSize, askSize int)
}

// AvellanedaStoikovReservation computes
//
//	r = mid - q / (γ · σ² · T)
//
// Higher γ damps the adjustment (more risk-averse); shorter T amplifies it
// (more urgency to flatten before settlement).
type AvellanedaStoikovReservation struct {
	Gamma decimal.Decimal
}

func (c AvellanedaStoikovReservation) Reservation(mid types.Price, inventory int, volatility decimal.Decimal, timeToSettlement float64) decimal.Decimal {
	// Degenerate at settlement or with no volatility signal: quote the mid.
	if timeToSettlement <= 0 || volatility.Sign() <= 0 || c.Gamma.Sign() <= 0 {
		return mid.Value()
	}

	t := decimal.NewFromFloat(timeToSettlement)
	denom := c.Gamma.Mul(volatility.Mul(volatility)).Mul(t)
	if denom.Sign() == 0 {
		return mid.Value()
	}

	adjustment := decimal.New(int64(inventory), 0).Div(denom)
	return mid.Value().Sub(adjustment)
}

// LinearSkew shifts quotes proportionally to the inventory ratio:
//
//	skew = intensity · (q / q_max)
type LinearSkew struct {
	Intensity decimal.Decimal
}

func (c LinearSkew) Skew(inventory, maxInventory int, _ decimal.Decimal) decimal.Decimal {
	if maxInventory == 0 {
		return decimal.Zero
	}
	ratio := decimal.New(int64(inventory), 0).Div(decimal.New(int64(maxInventory), 0))
	return c.Intensity.Mul(ratio)
}

// FixedSpread quotes a constant half-spread of max(base, min)/2 regardless
// of market conditions.
type FixedSpread struct {
	Base decimal.Decimal
	Min  decimal.Decimal
}

func (c FixedSpread) HalfSpread(_ decimal.Decimal, _, _ int, _ float64) decimal.Decimal {
	spread := c.Base
	if c.Min.GreaterThan(spread) {
		spread = c.Min
	}
	return spread.Div(decimal.New(2, 0))
}

// AvellanedaStoikovSpread combines the inventory-risk and market-impact
// terms of the A-S optimal spread:
//
//	δ = γ · σ² · T + (2/γ) · ln(1 + γ/k)
//
// The resulting half-spread is clamped to [Min, Max]. The logarithm goes
// through float64; spread width tolerates that rounding.
type AvellanedaStoikovSpread struct {
	Gamma decimal.Decimal
	K     decimal.Decimal
	Min   decimal.Decimal
	Max   decimal.Decimal
}

func (c AvellanedaStoikovSpread) HalfSpread(volatility decimal.Decimal, _, _ int, timeToSettlement float64) decimal.Decimal {
	half := c.Min

	if c.Gamma.Sign() > 0 && c.K.Sign() > 0 && timeToSettlement > 0 {
		gamma := c.Gamma.InexactFloat64()
		k := c.K.InexactFloat64()
		sigma := volatility.InexactFloat64()

		spread := gamma*sigma*sigma*timeToSettlement + (2/gamma)*math.Log(1+gamma/k)
		half = decimal.NewFromFloat(spread / 2)
	}

	if half.LessThan(c.Min) {
		half = c.Min
	}
	if half.GreaterThan(c.Max) {
		half = c.Max
	}
	return half
}

// AsymmetricSizer shrinks the side that would grow inventory and keeps the
// reducing side at full size:
//
//	ratio      = clamp(q / q_max, -1, 1)
//	bid_factor = 1 - max(0, ratio)
//	ask_factor = 1 + min(0, ratio)
//
// At max long the bid goes to zero; at max short the ask does.
type AsymmetricSizer struct{}

func (AsymmetricSizer) Sizes(inventory, maxInventory, baseSize int) (int, int) {
	if maxInventory == 0 {
		return baseSize, baseSize
	}

	ratio := float64(inventory) / float64(maxInventory)
	ratio = math.Max(-1, math.Min(1, ratio))

	bidFactor := 1 - math.Max(0, ratio)
	askFactor := 1 + math.Min(0, ratio)

	bid := int(math.Round(float64(baseSize) * bidFactor))
	ask := int(math.Round(float64(baseSize) * askFactor))
	if bid < 0 {
		bid = 0
	}
	if ask < 0 {
		ask = 0
	}
	return bid, ask
}
