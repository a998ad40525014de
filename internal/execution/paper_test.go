package execution

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"kalshi-mm/internal/market"
	"kalshi-mm/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBook() *market.OrderBook {
	return &market.OrderBook{
		MarketID: "KXBTC-TEST",
		Bids: []market.PriceLevel{
			{Price: types.MustPrice("0.48"), Size: 100},
		},
		Asks: []market.PriceLevel{
			{Price: types.MustPrice("0.52"), Size: 100},
		},
		Timestamp: time.Now(),
	}
}

func request(side types.Side, orderSide types.OrderSide, price string, size int) types.OrderRequest {
	return types.NewOrderRequest("KXBTC-TEST", side, orderSide, types.MustPrice(price), types.MustQuantity(size))
}

func TestSubmitRestingOrder(t *testing.T) {
	t.Parallel()

	e := NewPaperEngine(discardLogger())

	// Bid below the ask: rests, no fill.
	order := e.Submit(request(types.SideYes, types.Buy, "0.48", 50), testBook())

	if order.Status != types.OrderOpen {
		t.Errorf("status = %s, want open", order.Status)
	}
	select {
	case f := <-e.Fills():
		t.Errorf("unexpected fill %+v", f)
	default:
	}
}

func TestSubmitCrossingBuyFills(t *testing.T) {
	t.Parallel()

	e := NewPaperEngine(discardLogger())
	order := e.Submit(request(types.SideYes, types.Buy, "0.53", 50), testBook())

	if order.Status != types.OrderFilled {
		t.Fatalf("status = %s, want filled", order.Status)
	}

	fill := <-e.Fills()
	if !fill.Price.Equal(types.MustPrice("0.52")) {
		t.Errorf("fill price = %s, want 0.52 (the resting ask)", fill.Price)
	}
	if fill.Size.Value() != 50 {
		t.Errorf("fill size = %s, want 50", fill.Size)
	}
	if !fill.IsSimulated {
		t.Error("paper fills must be flagged simulated")
	}
}

func TestSubmitPartialFillBoundedByDisplayedSize(t *testing.T) {
	t.Parallel()

	e := NewPaperEngine(discardLogger())
	order := e.Submit(request(types.SideYes, types.Sell, "0.40", 250), testBook())

	if order.Status != types.OrderPartiallyFilled {
		t.Fatalf("status = %s, want partially_filled", order.Status)
	}
	if order.FilledSize != 100 {
		t.Errorf("filled = %d, want the 100 displayed on the bid", order.FilledSize)
	}
	if order.RemainingSize() != 150 {
		t.Errorf("remaining = %d, want 150", order.RemainingSize())
	}
}

func TestNoOrdersMatchAtComplementPrices(t *testing.T) {
	t.Parallel()

	// YES ask 0.52 means NO is buyable at 0.48. A NO buy at 0.48 crosses.
	e := NewPaperEngine(discardLogger())
	order := e.Submit(request(types.SideNo, types.Buy, "0.48", 30), testBook())

	if order.Status != types.OrderFilled {
		t.Fatalf("status = %s, want filled", order.Status)
	}
	fill := <-e.Fills()
	if !fill.Price.Equal(types.MustPrice("0.48")) {
		t.Errorf("fill price = %s, want NO-equivalent 0.48", fill.Price)
	}
	if fill.Side != types.SideNo {
		t.Errorf("fill side = %s, want no", fill.Side)
	}
}

func TestNoOrderBelowComplementRests(t *testing.T) {
	t.Parallel()

	e := NewPaperEngine(discardLogger())
	order := e.Submit(request(types.SideNo, types.Buy, "0.40", 30), testBook())

	if order.Status != types.OrderOpen {
		t.Errorf("status = %s, want open for non-crossing NO buy", order.Status)
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()

	e := NewPaperEngine(discardLogger())
	order := e.Submit(request(types.SideYes, types.Buy, "0.48", 50), testBook())

	if !e.Cancel(order.ID) {
		t.Fatal("cancel of a resting order should succeed")
	}
	got, _ := e.Order(order.ID)
	if got.Status != types.OrderCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}

	if e.Cancel(order.ID) {
		t.Error("second cancel should fail, order is terminal")
	}
	if e.Cancel("paper_missing") {
		t.Error("cancel of unknown order should fail")
	}
}

func TestCancelAll(t *testing.T) {
	t.Parallel()

	e := NewPaperEngine(discardLogger())
	e.Submit(request(types.SideYes, types.Buy, "0.48", 50), testBook())
	e.Submit(request(types.SideYes, types.Sell, "0.60", 50), testBook())
	e.Submit(request(types.SideYes, types.Buy, "0.53", 50), testBook()) // fills, terminal

	if n := e.CancelAll("KXBTC-TEST"); n != 2 {
		t.Errorf("cancelled %d orders, want 2 (filled order excluded)", n)
	}
	if open := e.OpenOrders("KXBTC-TEST"); len(open) != 0 {
		t.Errorf("%d open orders remain, want 0", len(open))
	}
}

func TestOpenOrders(t *testing.T) {
	t.Parallel()

	e := NewPaperEngine(discardLogger())
	e.Submit(request(types.SideYes, types.Buy, "0.48", 50), testBook())
	e.Submit(request(types.SideYes, types.Sell, "0.60", 40), testBook())

	open := e.OpenOrders("KXBTC-TEST")
	if len(open) != 2 {
		t.Fatalf("len = %d, want 2", len(open))
	}
	if len(e.OpenOrders("OTHER")) != 0 {
		t.Error("no open orders expected for another market")
	}
}

func TestSubmitWithNilBookRests(t *testing.T) {
	t.Parallel()

	e := NewPaperEngine(discardLogger())
	order := e.Submit(request(types.SideYes, types.Buy, "0.53", 50), nil)
	if order.Status != types.OrderOpen {
		t.Errorf("status = %s, want open when no book is available", order.Status)
	}
}
