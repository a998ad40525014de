package execution

import (
	"github.com/shopspring/decimal"

	"kalshi-mm/pkg/types"
)

// QuoteSlot identifies which of the four quote orders an action targets.
type QuoteSlot string

const (
	SlotYesBid QuoteSlot = "yes_bid"
	SlotYesAsk QuoteSlot = "yes_ask"
	SlotNoBid  QuoteSlot = "no_bid"
	SlotNoAsk  QuoteSlot = "no_ask"
)

// ActionType is what the controller should do for one slot.
type ActionType string

const (
	ActionNew    ActionType = "new"
	ActionCancel ActionType = "cancel"
	ActionAmend  ActionType = "amend" // cancel then place
	ActionKeep   ActionType = "keep"
)

// Action is one step of converging resting orders onto a new QuoteSet.
type Action struct {
	Type    ActionType
	Slot    QuoteSlot
	OrderID string              // set for cancel/amend/keep
	Request *types.OrderRequest // set for new/amend
}

// QuoteOrders tracks the resting order (if any) per quote slot for one
// market.
type QuoteOrders struct {
	MarketID string
	YesBid   *types.Order
	YesAsk   *types.Order
}

// Set records an order in its slot.
func (q *QuoteOrders) Set(slot QuoteSlot, order types.Order) {
	switch slot {
	case SlotYesBid:
		q.YesBid = &order
	case SlotYesAsk:
		q.YesAsk = &order
	}
}

// Clear empties a slot.
func (q *QuoteOrders) Clear(slot QuoteSlot) {
	switch slot {
	case SlotYesBid:
		q.YesBid = nil
	case SlotYesAsk:
		q.YesAsk = nil
	}
}

// Differ computes the minimal action set to move from current resting
// orders to a new QuoteSet. Orders within tolerance of the new quote are
// kept, which avoids cancel/replace churn and keeps queue position.
//
// Only the YES slots are diffed: the NO orders in a QuoteSet are the
// complement of the YES orders, so placing both would double the exposure
// on a single-book exchange.
type Differ struct {
	priceTolerance decimal.Decimal
	sizeTolerance  int
}

func NewDiffer(priceTolerance decimal.Decimal, sizeTolerance int) *Differ {
	return &Differ{
		priceTolerance: priceTolerance,
		sizeTolerance:  sizeTolerance,
	}
}

// Diff returns the actions needed for the YES bid and ask slots. Quotes at
// an unfillable edge price (bid at 0.01, ask at 0.99) are treated as "leave
// this side unquoted".
func (d *Differ) Diff(quotes types.QuoteSet, current *QuoteOrders) []Action {
	requests := quotes.ToOrderRequests()

	// ToOrderRequests order: YES buy, YES sell, NO buy, NO sell.
	yesBid := &requests[0]
	yesAsk := &requests[1]

	if yesBid.Price.Value().LessThanOrEqual(types.MinPrice) {
		yesBid = nil
	}
	if yesAsk != nil && yesAsk.Price.Value().GreaterThanOrEqual(types.MaxPrice) {
		yesAsk = nil
	}

	var actions []Action
	slots := []struct {
		slot    QuoteSlot
		request *types.OrderRequest
		order   *types.Order
	}{
		{SlotYesBid, yesBid, currentOrder(current, SlotYesBid)},
		{SlotYesAsk, yesAsk, currentOrder(current, SlotYesAsk)},
	}

	for _, s := range slots {
		if action, ok := d.diffSlot(s.slot, s.request, s.order); ok {
			actions = append(actions, action)
		}
	}
	return actions
}

func currentOrder(current *QuoteOrders, slot QuoteSlot) *types.Order {
	if current == nil {
		return nil
	}
	switch slot {
	case SlotYesBid:
		return current.YesBid
	case SlotYesAsk:
		return current.YesAsk
	}
	return nil
}

func (d *Differ) diffSlot(slot QuoteSlot, request *types.OrderRequest, order *types.Order) (Action, bool) {
	switch {
	case request == nil && order == nil:
		return Action{}, false
	case request == nil:
		return Action{Type: ActionCancel, Slot: slot, OrderID: order.ID}, true
	case order == nil:
		return Action{Type: ActionNew, Slot: slot, Request: request}, true
	case d.matches(*request, *order):
		return Action{Type: ActionKeep, Slot: slot, OrderID: order.ID}, true
	default:
		return Action{Type: ActionAmend, Slot: slot, OrderID: order.ID, Request: request}, true
	}
}

func (d *Differ) matches(request types.OrderRequest, order types.Order) bool {
	if request.Side != order.Side || request.OrderSide != order.OrderSide {
		return false
	}

	priceDiff := request.Price.Value().Sub(order.Price.Value()).Abs()
	if priceDiff.GreaterThan(d.priceTolerance) {
		return false
	}

	sizeDiff := request.Size.Value() - order.RemainingSize()
	if sizeDiff < 0 {
		sizeDiff = -sizeDiff
	}
	return sizeDiff <= d.sizeTolerance
}
