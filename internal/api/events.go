package api

import (
	"time"

	"kalshi-mm/pkg/types"
)

// Event is the wrapper for everything pushed over the WebSocket stream.
type Event struct {
	Type      string      `json:"type"` // "snapshot", "fill", "quote", "block", "kill"
	Timestamp time.Time   `json:"timestamp"`
	MarketID  string      `json:"market_id,omitempty"`
	Data      interface{} `json:"data"`
}

// FillEvent notifies a trade fill together with the position it produced.
type FillEvent struct {
	FillID        string `json:"fill_id"`
	OrderID       string `json:"order_id"`
	Side          string `json:"side"`
	OrderSide     string `json:"order_side"`
	Price         string `json:"price"`
	Size          int    `json:"size"`
	Simulated     bool   `json:"simulated"`
	NetInventory  int    `json:"net_inventory"`
	RealizedPnL   string `json:"realized_pnl"`
}

// QuoteEvent carries the latest quotes placed for a market.
type QuoteEvent struct {
	BidPrice string `json:"bid_price"`
	BidSize  int    `json:"bid_size"`
	AskPrice string `json:"ask_price"`
	AskSize  int    `json:"ask_size"`
}

// BlockEvent notifies that a quoting cycle was blocked by a risk rule.
type BlockEvent struct {
	Reason string `json:"reason"`
}

// KillEvent notifies a kill-switch transition.
type KillEvent struct {
	Active bool   `json:"active"`
	Reason string `json:"reason,omitempty"`
}

// NewFillEvent builds a fill event.
func NewFillEvent(fill types.Fill, netInventory int, realized string) Event {
	return Event{
		Type:      "fill",
		Timestamp: fill.Timestamp,
		MarketID:  fill.MarketID,
		Data: FillEvent{
			FillID:       fill.ID,
			OrderID:      fill.OrderID,
			Side:         string(fill.Side),
			OrderSide:    string(fill.OrderSide),
			Price:        fill.Price.String(),
			Size:         fill.Size.Value(),
			Simulated:    fill.IsSimulated,
			NetInventory: netInventory,
			RealizedPnL:  realized,
		},
	}
}

// NewQuoteEvent builds a quote event from the YES quote.
func NewQuoteEvent(quotes types.QuoteSet) Event {
	return Event{
		Type:      "quote",
		Timestamp: quotes.Timestamp,
		MarketID:  quotes.MarketID,
		Data: QuoteEvent{
			BidPrice: quotes.Yes.BidPrice.String(),
			BidSize:  quotes.Yes.BidSize.Value(),
			AskPrice: quotes.Yes.AskPrice.String(),
			AskSize:  quotes.Yes.AskSize.Value(),
		},
	}
}

// NewBlockEvent builds a risk-block event.
func NewBlockEvent(marketID, reason string, at time.Time) Event {
	return Event{
		Type:      "block",
		Timestamp: at,
		MarketID:  marketID,
		Data:      BlockEvent{Reason: reason},
	}
}

// NewKillEvent builds a kill-switch transition event.
func NewKillEvent(active bool, reason string, at time.Time) Event {
	return Event{
		Type:      "kill",
		Timestamp: at,
		Data:      KillEvent{Active: active, Reason: reason},
	}
}
