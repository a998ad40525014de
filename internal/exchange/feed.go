// Package exchange supplies market data to the controller.
//
// Feed is the boundary the controller consumes book updates through. The
// mock feed implements it with a synthetic random walk so the whole bot
// runs end-to-end in paper mode with no network access; a live Kalshi
// WebSocket feed plugs in behind the same interface.
package exchange

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"kalshi-mm/internal/market"
	"kalshi-mm/pkg/types"
)

// Feed delivers normalized book updates for subscribed markets.
type Feed interface {
	// Run produces updates until the context is cancelled.
	Run(ctx context.Context) error
	// BookUpdates returns the channel updates are delivered on.
	BookUpdates() <-chan market.BookUpdate
}

// MockFeed generates synthetic books for a set of markets: an initial
// snapshot per market, then delta updates following a bounded random walk
// around the last mid.
type MockFeed struct {
	markets  []string
	interval time.Duration
	updates  chan market.BookUpdate
	rng      *rand.Rand
	mids     map[string]int // current mid in cents
	logger   *slog.Logger
}

func NewMockFeed(markets []string, interval time.Duration, seed int64, logger *slog.Logger) *MockFeed {
	mids := make(map[string]int, len(markets))
	for _, m := range markets {
		mids[m] = 50
	}
	return &MockFeed{
		markets:  markets,
		interval: interval,
		updates:  make(chan market.BookUpdate, 64),
		rng:      rand.New(rand.NewSource(seed)),
		mids:     mids,
		logger:   logger.With("component", "mock_feed"),
	}
}

func (f *MockFeed) BookUpdates() <-chan market.BookUpdate {
	return f.updates
}

// Run emits one snapshot per market, then deltas on every tick until the
// context is cancelled.
func (f *MockFeed) Run(ctx context.Context) error {
	for _, m := range f.markets {
		f.send(ctx, f.snapshot(m))
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(f.updates)
			return ctx.Err()
		case <-ticker.C:
			for _, m := range f.markets {
				f.send(ctx, f.step(m))
			}
		}
	}
}

func (f *MockFeed) send(ctx context.Context, update market.BookUpdate) {
	select {
	case f.updates <- update:
	case <-ctx.Done():
	}
}

// snapshot builds a three-level book around the market's current mid.
func (f *MockFeed) snapshot(marketID string) market.BookUpdate {
	mid := f.mids[marketID]

	var bids, asks []market.PriceLevel
	for depth := 1; depth <= 3; depth++ {
		if p, err := types.PriceFromCents(mid - 1 - (depth - 1)); err == nil {
			bids = append(bids, market.PriceLevel{Price: p, Size: 100 * depth})
		}
		if p, err := types.PriceFromCents(mid + 1 + (depth - 1)); err == nil {
			asks = append(asks, market.PriceLevel{Price: p, Size: 100 * depth})
		}
	}

	return market.BookUpdate{
		MarketID:  marketID,
		Type:      market.UpdateSnapshot,
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now(),
	}
}

// step walks the mid one cent up or down (bounded away from the price
// limits) and re-emits the book as a snapshot. Real feeds send deltas; for
// the paper loop a fresh snapshot exercises the same builder path without
// tracking which levels the walk invalidated.
func (f *MockFeed) step(marketID string) market.BookUpdate {
	mid := f.mids[marketID]

	switch f.rng.Intn(3) {
	case 0:
		if mid > 5 {
			mid--
		}
	case 1:
		if mid < 95 {
			mid++
		}
	}
	f.mids[marketID] = mid

	return f.snapshot(marketID)
}
