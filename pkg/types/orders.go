package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Order lifecycle
// ————————————————————————————————————————————————————————————————————————

// OrderStatus enumerates order lifecycle states.
//
// Transitions:
//
//	PENDING → OPEN | REJECTED
//	OPEN → PARTIALLY_FILLED | FILLED | CANCELLING
//	PARTIALLY_FILLED → FILLED | CANCELLING
//	CANCELLING → CANCELLED
type OrderStatus string

const (
	OrderPending         OrderStatus = "pending"
	OrderOpen            OrderStatus = "open"
	OrderPartiallyFilled OrderStatus = "partially_filled"
	OrderFilled          OrderStatus = "filled"
	OrderCancelling      OrderStatus = "cancelling"
	OrderCancelled       OrderStatus = "cancelled"
	OrderRejected        OrderStatus = "rejected"
)

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderFilled || s == OrderCancelled || s == OrderRejected
}

// IsActive reports whether the order is resting on the book and can fill.
func (s OrderStatus) IsActive() bool {
	return s == OrderOpen || s == OrderPartiallyFilled
}

// Order is an order known to the exchange (or the paper engine).
// Immutable — use WithStatus or WithFill to get updated copies.
type Order struct {
	ID            string // exchange-assigned (or paper-generated) ID
	ClientOrderID string // our internal ID for correlation
	MarketID      string
	Side          Side      // YES or NO
	OrderSide     OrderSide // BUY or SELL
	Price         Price
	Size          Quantity
	FilledSize    int // contracts filled so far
	Status        OrderStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RemainingSize returns the unfilled quantity.
func (o Order) RemainingSize() int { return o.Size.Value() - o.FilledSize }

// WithStatus returns a copy with an updated status.
func (o Order) WithStatus(status OrderStatus, at time.Time) Order {
	o.Status = status
	o.UpdatedAt = at
	return o
}

// WithFill returns a copy with updated fill information. filledSize is the
// new cumulative filled size, not an increment.
func (o Order) WithFill(filledSize int, at time.Time) Order {
	o.FilledSize = filledSize
	if filledSize >= o.Size.Value() {
		o.Status = OrderFilled
	} else {
		o.Status = OrderPartiallyFilled
	}
	o.UpdatedAt = at
	return o
}

// OrderRequest is a request to place a new order. The exchange-assigned ID
// arrives in the response.
type OrderRequest struct {
	ClientOrderID string
	MarketID      string
	Side          Side
	OrderSide     OrderSide
	Price         Price
	Size          Quantity
}

// NewOrderRequest builds an OrderRequest with a generated client order ID.
func NewOrderRequest(marketID string, side Side, orderSide OrderSide, price Price, size Quantity) OrderRequest {
	return OrderRequest{
		ClientOrderID: "mm_" + uuid.NewString()[:12],
		MarketID:      marketID,
		Side:          side,
		OrderSide:     orderSide,
		Price:         price,
		Size:          size,
	}
}

// ————————————————————————————————————————————————————————————————————————
// Quotes
// ————————————————————————————————————————————————————————————————————————

// Quote is a two-sided quote (bid and ask) for one side of a binary market.
type Quote struct {
	BidPrice Price
	BidSize  Quantity
	AskPrice Price
	AskSize  Quantity
}

// Spread returns ask - bid.
func (q Quote) Spread() decimal.Decimal {
	return q.AskPrice.Value().Sub(q.BidPrice.Value())
}

// QuoteSet is the complete quote state for one binary market. Only the YES
// quote is stored; the NO quote is always derived via the price complement
// and never cached, which keeps the two sides arbitrage-consistent by
// construction.
type QuoteSet struct {
	MarketID  string
	Yes       Quote
	Timestamp time.Time
}

/// NoQuote derives the NO-side quote from the YES quote:
//
//	NO bid = 1 - YES ask (buying NO is the counterparty to selling YES)
//	NO ask = 1 - YES bid
//
// with sizes swapped from the opposite YES side.
func (qs QuoteSet) NoQuote() Quote {
	return Quote{
		BidPrice: qs.Yes.AskPrice.Complement(),
		BidSize:  qs.Yes.AskSize,
		AskPrice: qs.Yes.BidPrice.Complement(),
		AskSize:  qs.Yes.BidSize,
	}
}

// ToOrderRequests expands the quote set into exactly four order requests:
// YES buy, YES sell, NO buy, NO sell.
func (qs QuoteSet) ToOrderRequests() []OrderRequest {
	no := qs.NoQuote()
	return []OrderRequest{
		NewOrderRequest(qs.MarketID, SideYes, Buy, qs.Yes.BidPrice, qs.Yes.BidSize),
		NewOrderRequest(qs.MarketID, SideYes, Sell, qs.Yes.AskPrice, qs.Yes.AskSize),
		NewOrderRequest(qs.MarketID, SideNo, Buy, no.BidPrice, no.BidSize),
		NewOrderRequest(qs.MarketID, SideNo, Sell, no.AskPrice, no.AskSize),
	}
}

// ————————————————————————————————————————————————————————————————————————
// Fills
// ————————————————————————————————————————————————————————————————————————

// Fill records a single execution. Created once by the execution layer and
// applied exactly once to the state store (which deduplicates by ID).
type Fill struct {
	ID          string
	OrderID     string
	MarketID    string
	Side        Side
	OrderSide   OrderSide
	Price       Price
	Size        Quantity
	Timestamp   time.Time
	IsSimulated bool // true for paper-trading fills
}

// Notional returns price * size.
func (f Fill) Notional() decimal.Decimal {
	return f.Price.Value().Mul(decimal.New(int64(f.Size.Value()), 0))
}
