// Package types defines the shared domain model for the market maker.
//
// This package is the common vocabulary for the bot: prices, quantities,
// quotes, orders, fills, and positions for binary (YES/NO) prediction
// markets. It has no dependencies on internal packages, so it can be
// imported by any layer.
//
// All value objects are immutable: updates return copies. Prices use
// github.com/shopspring/decimal so that the YES/NO complement relationship
// and all PnL arithmetic hold exactly, with no floating-point drift.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the contract side of a binary market: YES or NO.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Opposite returns the other contract side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// OrderSide represents the direction of an order: BUY or SELL.
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// Opposite returns the other order direction.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ————————————————————————————————————————————————————————————————————————
// Price
// ————————————————————————————————————————————————————————————————————————

// Price bounds for binary contracts. A contract trading at 0.00 or 1.00 is
// settled, not quotable.
var (
	MinPrice = decimal.New(1, -2)  // 0.01
	MaxPrice = decimal.New(99, -2) // 0.99

	one = decimal.New(1, 0)
)

// Price is the price of a binary contract, constrained to [0.01, 0.99].
// On Kalshi prices are expressed as cents (1-99); this model normalizes to
// a decimal probability.
type Price struct {
	value decimal.Decimal
}

// NewPrice validates and wraps a decimal price.
func NewPrice(v decimal.Decimal) (Price, error) {
	if v.LessThan(MinPrice) || v.GreaterThan(MaxPrice) {
		return Price{}, fmt.Errorf("price %s outside valid range [%s, %s]", v, MinPrice, MaxPrice)
	}
	return Price{value: v}, nil
}

// PriceFromCents creates a Price from Kalshi-style cents (1-99).
func PriceFromCents(cents int) (Price, error) {
	return NewPrice(decimal.New(int64(cents), -2))
}

// MustPrice parses a decimal string and panics if it is not a valid price.
// Intended for constants and tests, not for external input.
func MustPrice(s string) Price {
	p, err := NewPrice(decimal.RequireFromString(s))
	if err != nil {
		panic(err)
	}
	return p
}

// Value returns the underlying decimal.
func (p Price) Value() decimal.Decimal { return p.value }

// Cents returns the price in cents (1-99), rounded to nearest.
func (p Price) Cents() int {
	return int(p.value.Mul(decimal.New(100, 0)).Round(0).IntPart())
}

// Complement returns 1 - price, converting between the YES and NO books.
// If YES trades at 0.45, the equivalent NO price is 0.55. The complement of
// a valid price is always itself a valid price.
func (p Price) Complement() Price {
	return Price{value: one.Sub(p.value)}
}

// Equal reports exact equality of price values.
func (p Price) Equal(other Price) bool { return p.value.Equal(other.value) }

func (p Price) String() string { return p.value.String() }

// ClampPrice clamps an unconstrained decimal into the valid price range.
// Used by the strategy engine after raw quote arithmetic.
func ClampPrice(v decimal.Decimal) Price {
	if v.LessThan(MinPrice) {
		return Price{value: MinPrice}
	}
	if v.GreaterThan(MaxPrice) {
		return Price{value: MaxPrice}
	}
	return Price{value: v}
}

// ————————————————————————————————————————————————————————————————————————
// Quantity
// ————————————————————————————————————————————————————————————————————————

// Quantity is a positive number of contracts. Zero or negative counts are a
// constructor failure, never a runtime check further down the pipeline.
type Quantity struct {
	value int
}

// NewQuantity validates and wraps a contract count.
func NewQuantity(v int) (Quantity, error) {
	if v <= 0 {
		return Quantity{}, fmt.Errorf("quantity must be positive, got %d", v)
	}
	return Quantity{value: v}, nil
}

// MustQuantity wraps a contract count, panicking if it is not positive.
// Intended for constants and tests.
func MustQuantity(v int) Quantity {
	q, err := NewQuantity(v)
	if err != nil {
		panic(err)
	}
	return q
}

// Value returns the contract count.
func (q Quantity) Value() int { return q.value }

func (q Quantity) String() string { return fmt.Sprintf("%d", q.value) }
