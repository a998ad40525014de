package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kalshi-mm/pkg/types"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()

	repo, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testOrder() types.Order {
	now := time.Now()
	return types.Order{
		ID:            "paper_abc123",
		ClientOrderID: "mm_xyz",
		MarketID:      "KXBTC-TEST",
		Side:          types.SideYes,
		OrderSide:     types.Buy,
		Price:         types.MustPrice("0.48"),
		Size:          types.MustQuantity(100),
		Status:        types.OrderOpen,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestSaveOrderUpsert(t *testing.T) {
	t.Parallel()

	repo := testRepo(t)
	ctx := context.Background()
	order := testOrder()

	if err := repo.SaveOrder(ctx, order); err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}

	// Same ID with a new status must update, not duplicate.
	filled := order.WithFill(100, time.Now())
	if err := repo.SaveOrder(ctx, filled); err != nil {
		t.Fatalf("SaveOrder update: %v", err)
	}

	var count int
	var status string
	row := repo.db.QueryRow(`SELECT COUNT(*), MAX(status) FROM orders WHERE id = ?`, order.ID)
	if err := row.Scan(&count, &status); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 1 {
		t.Errorf("rows = %d, want 1", count)
	}
	if status != string(types.OrderFilled) {
		t.Errorf("status = %q, want filled", status)
	}
}

func TestSaveFill(t *testing.T) {
	t.Parallel()

	repo := testRepo(t)
	fill := types.Fill{
		ID:          "fill_abc123",
		OrderID:     "paper_abc123",
		MarketID:    "KXBTC-TEST",
		Side:        types.SideYes,
		OrderSide:   types.Buy,
		Price:       types.MustPrice("0.48"),
		Size:        types.MustQuantity(50),
		Timestamp:   time.Now(),
		IsSimulated: true,
	}

	if err := repo.SaveFill(context.Background(), fill); err != nil {
		t.Fatalf("SaveFill: %v", err)
	}

	var price string
	row := repo.db.QueryRow(`SELECT price FROM fills WHERE id = ?`, fill.ID)
	if err := row.Scan(&price); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if price != "0.48" {
		t.Errorf("stored price = %q, want decimal string 0.48", price)
	}
}

func TestSavePnLSnapshot(t *testing.T) {
	t.Parallel()

	repo := testRepo(t)
	rec := PnLRecord{
		Realized:   decimal.RequireFromString("19.00"),
		Unrealized: decimal.RequireFromString("-2.50"),
		Hourly:     decimal.RequireFromString("19.00"),
		Daily:      decimal.RequireFromString("19.00"),
		TotalFees:  decimal.RequireFromString("1.00"),
		TakenAt:    time.Now(),
	}

	if err := repo.SavePnLSnapshot(context.Background(), rec); err != nil {
		t.Fatalf("SavePnLSnapshot: %v", err)
	}

	var realized string
	row := repo.db.QueryRow(`SELECT realized_pnl FROM pnl_snapshots WHERE session_id = ?`, repo.SessionID())
	if err := row.Scan(&realized); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if realized != "19" {
		t.Errorf("realized = %q, want 19", realized)
	}
}
