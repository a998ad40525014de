// Package state owns per-market positions and the running PnL accumulators.
//
// The store is the single source of truth for inventory and realized PnL.
// Average-cost and realized-PnL arithmetic is order-dependent, so all
// mutation is funneled through a mutex: the controller's event loop is the
// writer, while the monitoring API reads snapshots concurrently.
package state

import (
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"kalshi-mm/pkg/types"
)

// Store applies fills to positions and accumulates realized, hourly and
// daily PnL, all net of fees. It deduplicates by fill ID, so replaying a
// fill event is a harmless no-op rather than a double-count.
type Store struct {
	mu sync.RWMutex

	feeRate   decimal.Decimal
	positions map[string]types.Position

	realized  decimal.Decimal
	hourly    decimal.Decimal
	daily     decimal.Decimal
	totalFees decimal.Decimal

	applied map[string]struct{} // fill IDs already applied

	logger *slog.Logger
}

// NewStore creates an empty store. feeRate is the per-fill fee fraction of
// notional (fee = price * size * feeRate).
func NewStore(feeRate decimal.Decimal, logger *slog.Logger) *Store {
	return &Store{
		feeRate:   feeRate,
		positions: make(map[string]types.Position),
		applied:   make(map[string]struct{}),
		logger:    logger.With("component", "state"),
	}
}

// ApplyFill applies one fill to its market's position and the PnL
// accumulators. Returns false if the fill ID was seen before, in which case
// nothing changes.
func (s *Store) ApplyFill(fill types.Fill) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.applied[fill.ID]; seen {
		s.logger.Debug("duplicate fill ignored", "fill_id", fill.ID, "order_id", fill.OrderID)
		return false
	}
	s.applied[fill.ID] = struct{}{}

	pos, ok := s.positions[fill.MarketID]
	if !ok {
		pos = types.EmptyPosition(fill.MarketID)
	}

	size := fill.Size.Value()
	fee := fill.Price.Value().Mul(decimal.New(int64(size), 0)).Mul(s.feeRate)

	realizedDelta := decimal.Zero
	if fill.OrderSide == types.Sell {
		held, avg := heldSide(pos, fill.Side)
		if avg != nil {
			closed := size
			if held < closed {
				s.logger.Warn("sell fill exceeds held quantity, clamping",
					"market", fill.MarketID,
					"side", fill.Side,
					"held", held,
					"fill_size", size,
				)
				closed = held
			}
			realizedDelta = fill.Price.Value().Sub(avg.Value()).Mul(decimal.New(int64(closed), 0))
		}
	}

	s.positions[fill.MarketID] = pos.WithFill(fill.Side, fill.OrderSide, size, fill.Price)

	net := realizedDelta.Sub(fee)
	s.realized = s.realized.Add(net)
	s.hourly = s.hourly.Add(net)
	s.daily = s.daily.Add(net)
	s.totalFees = s.totalFees.Add(fee)

	s.logger.Info("fill applied",
		"market", fill.MarketID,
		"side", fill.Side,
		"order_side", fill.OrderSide,
		"price", fill.Price,
		"size", size,
		"realized_delta", net.StringFixed(4),
	)
	return true
}

func heldSide(pos types.Position, side types.Side) (int, *types.Price) {
	if side == types.SideYes {
		return pos.YesQuantity, pos.AvgYesPrice
	}
	return pos.NoQuantity, pos.AvgNoPrice
}

// Position returns the position for a market, or false if no fill has ever
// touched it.
func (s *Store) Position(marketID string) (types.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[marketID]
	return pos, ok
}

// Positions returns a copy of all positions.
func (s *Store) Positions() map[string]types.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]types.Position, len(s.positions))
	for id, pos := range s.positions {
		out[id] = pos
	}
	return out
}

// NetInventory returns the signed net inventory for a market (zero if the
// market is unknown).
func (s *Store) NetInventory(marketID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positions[marketID].NetInventory()
}

// UnrealizedPnL marks a market's position against the given YES price. The
// NO side is marked against the complement.
func (s *Store) UnrealizedPnL(marketID string, mark types.Price) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.positions[marketID]
	if !ok {
		return decimal.Zero
	}
	return types.UnrealizedPnL(pos, mark)
}

// RealizedPnL returns cumulative realized PnL net of fees.
func (s *Store) RealizedPnL() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.realized
}

// HourlyPnL returns realized PnL accumulated since the last hourly reset.
func (s *Store) HourlyPnL() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hourly
}

// DailyPnL returns realized PnL accumulated since the last daily reset.
func (s *Store) DailyPnL() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.daily
}

// TotalFees returns cumulative fees paid.
func (s *Store) TotalFees() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalFees
}

// ResetHourly zeroes the hourly accumulator. Called by the controller on
// the hour boundary.
func (s *Store) ResetHourly() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hourly = decimal.Zero
}

// ResetDaily zeroes the daily accumulator.
func (s *Store) ResetDaily() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily = decimal.Zero
}

// ResetMarket drops a market's position, e.g. after settlement.
func (s *Store) ResetMarket(marketID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, marketID)
}
