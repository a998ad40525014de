// Package execution places and reconciles orders.
//
// PaperEngine simulates execution against live book data without touching
// an exchange: submitted orders fill immediately when they cross the
// opposite side, partial fills are bounded by displayed size, and every
// fill is flagged simulated. Differ computes the minimal cancel/place set
// to converge resting orders onto a fresh QuoteSet.
package execution

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"kalshi-mm/internal/market"
	"kalshi-mm/pkg/types"
)

// PaperEngine simulates order execution. It does not model market impact
// or latency; an order either crosses the current book or rests.
type PaperEngine struct {
	mu     sync.Mutex
	orders map[string]types.Order
	fills  chan types.Fill
	logger *slog.Logger
}

func NewPaperEngine(logger *slog.Logger) *PaperEngine {
	return &PaperEngine{
		orders: make(map[string]types.Order),
		fills:  make(chan types.Fill, 256),
		logger: logger.With("component", "paper_execution"),
	}
}

// Fills returns the channel fills are delivered on. The controller is the
// sole consumer.
func (e *PaperEngine) Fills() <-chan types.Fill {
	return e.fills
}

// Submit accepts an order and immediately tries to fill it against the
// book. The returned Order reflects any instant fill.
func (e *PaperEngine) Submit(req types.OrderRequest, book *market.OrderBook) types.Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	order := types.Order{
		ID:            "paper_" + uuid.NewString()[:12],
		ClientOrderID: req.ClientOrderID,
		MarketID:      req.MarketID,
		Side:          req.Side,
		OrderSide:     req.OrderSide,
		Price:         req.Price,
		Size:          req.Size,
		Status:        types.OrderOpen,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	e.orders[order.ID] = order

	e.tryFill(order.ID, book)
	return e.orders[order.ID]
}

// Cancel cancels a resting order. Returns false if the order is unknown or
// already terminal.
func (e *PaperEngine) Cancel(orderID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[orderID]
	if !ok || order.Status.IsTerminal() {
		return false
	}
	e.orders[orderID] = order.WithStatus(types.OrderCancelled, time.Now())
	return true
}

// CancelAll cancels every active order for a market and returns the count.
func (e *PaperEngine) CancelAll(marketID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	now := time.Now()
	for id, order := range e.orders {
		if order.MarketID == marketID && order.Status.IsActive() {
			e.orders[id] = order.WithStatus(types.OrderCancelled, now)
			count++
		}
	}
	return count
}

// Order looks up an order by ID.
func (e *PaperEngine) Order(orderID string) (types.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	order, ok := e.orders[orderID]
	return order, ok
}

// OpenOrders returns all active orders for a market.
func (e *PaperEngine) OpenOrders(marketID string) []types.Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	var open []types.Order
	for _, order := range e.orders {
		if order.MarketID == marketID && order.Status.IsActive() {
			open = append(open, order)
		}
	}
	return open
}

// tryFill matches an order against the current book. Caller holds the lock.
func (e *PaperEngine) tryFill(orderID string, book *market.OrderBook) {
	order := e.orders[orderID]
	if book == nil {
		return
	}

	fillPrice, available, ok := matchingLevel(order, book)
	if !ok || available <= 0 {
		return
	}
	if !crosses(order, fillPrice) {
		return
	}

	size := order.RemainingSize()
	if available < size {
		size = available
	}

	fill := types.Fill{
		ID:          "fill_" + uuid.NewString()[:12],
		OrderID:     order.ID,
		MarketID:    order.MarketID,
		Side:        order.Side,
		OrderSide:   order.OrderSide,
		Price:       fillPrice,
		Size:        types.MustQuantity(size),
		Timestamp:   time.Now(),
		IsSimulated: true,
	}

	e.orders[order.ID] = order.WithFill(order.FilledSize+size, time.Now())

	select {
	case e.fills <- fill:
	default:
		e.logger.Warn("fill channel full, dropping fill", "fill_id", fill.ID)
	}
}

// matchingLevel returns the book level an order would trade against. NO
// orders match the YES book at complement prices: buying NO is the
// counterparty to buying YES, so a NO buy lifts the YES ask at 1 - ask.
func matchingLevel(order types.Order, book *market.OrderBook) (types.Price, int, bool) {
	var level market.PriceLevel
	var ok bool

	if order.OrderSide == types.Buy {
		level, ok = book.BestAsk()
	} else {
		level, ok = book.BestBid()
	}
	if !ok {
		return types.Price{}, 0, false
	}

	price := level.Price
	if order.Side == types.SideNo {
		price = price.Complement()
	}
	return price, level.Size, true
}

func crosses(order types.Order, fillPrice types.Price) bool {
	if order.OrderSide == types.Buy {
		return !order.Price.Value().LessThan(fillPrice.Value())
	}
	return !order.Price.Value().GreaterThan(fillPrice.Value())
}
