// Package market maintains local order book state for quoted markets.
//
// Builder mirrors the YES-side book for a single binary market. It is fed
// from the exchange feed in two forms:
//   - full snapshots, which replace the book wholesale
//   - incremental deltas, which set or remove a single price level
//
// Deltas that arrive before the first snapshot are dropped; without a
// baseline they would build a partial, misleading book. The Builder is
// concurrency-safe (RWMutex protected) and hands out immutable OrderBook
// copies for the strategy and risk layers.
package market

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"kalshi-mm/pkg/types"
)

// UpdateType distinguishes full snapshots from incremental deltas.
type UpdateType string

const (
	UpdateSnapshot UpdateType = "snapshot"
	UpdateDelta    UpdateType = "delta"
)

// PriceLevel is one level of the book: a price and the displayed size.
type PriceLevel struct {
	Price types.Price
	Size  int
}

// BookUpdate is a normalized book event from the exchange feed. For
// snapshots, Bids and Asks carry the full book. For deltas, DeltaPrice,
// DeltaSize and DeltaIsBid describe a single level; size zero removes it.
type BookUpdate struct {
	MarketID   string
	Type       UpdateType
	Bids       []PriceLevel
	Asks       []PriceLevel
	DeltaPrice types.Price
	DeltaSize  int
	DeltaIsBid bool
	Timestamp  time.Time
}

// OrderBook is a point-in-time copy of the YES-side book.
// Bids are sorted descending, asks ascending.
type OrderBook struct {
	MarketID  string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// BestBid returns the highest bid, or false if the bid side is empty.
func (b *OrderBook) BestBid() (PriceLevel, bool) {
	if len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest ask, or false if the ask side is empty.
func (b *OrderBook) BestAsk() (PriceLevel, bool) {
	if len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	return b.Asks[0], true
}

// MidPrice returns (bestBid + bestAsk) / 2. This is the reference price "s"
// for the strategy layer. Returns false if either side is empty.
func (b *OrderBook) MidPrice() (types.Price, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return types.Price{}, false
	}
	mid := bid.Price.Value().Add(ask.Price.Value()).Div(two)
	return types.ClampPrice(mid), true
}

var two = decimal.New(2, 0)

// Builder maintains the book for one market from snapshot and delta updates.
// Levels are keyed by price in cents (1-99); prices are reconstructed on
// read so the stored state stays trivially comparable.
type Builder struct {
	mu       sync.RWMutex
	marketID string
	bids     map[int]int // cents -> size
	asks     map[int]int
	snapshot bool
	updated  time.Time
}

// NewBuilder creates an empty book builder for a market.
func NewBuilder(marketID string) *Builder {
	return &Builder{
		marketID: marketID,
		bids:     make(map[int]int),
		asks:     make(map[int]int),
	}
}

// Apply applies a snapshot or delta update.
func (b *Builder) Apply(update BookUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch update.Type {
	case UpdateSnapshot:
		b.applySnapshot(update)
	case UpdateDelta:
		if !b.snapshot {
			// No baseline yet; a delta alone cannot produce a correct book.
			return
		}
		b.applyDelta(update)
	default:
		return
	}

	b.updated = update.Timestamp
}

func (b *Builder) applySnapshot(update BookUpdate) {
	clear(b.bids)
	clear(b.asks)

	for _, lvl := range update.Bids {
		if lvl.Size > 0 {
			b.bids[lvl.Price.Cents()] = lvl.Size
		}
	}
	for _, lvl := range update.Asks {
		if lvl.Size > 0 {
			b.asks[lvl.Price.Cents()] = lvl.Size
		}
	}
	b.snapshot = true
}

func (b *Builder) applyDelta(update BookUpdate) {
	side := b.asks
	if update.DeltaIsBid {
		side = b.bids
	}

	cents := update.DeltaPrice.Cents()
	if update.DeltaSize <= 0 {
		delete(side, cents)
	} else {
		side[cents] = update.DeltaSize
	}
}

// HasBook reports whether a snapshot has been received.
func (b *Builder) HasBook() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot
}

// LastUpdated returns the timestamp of the most recent applied update,
// or the zero time if nothing has arrived.
func (b *Builder) LastUpdated() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated
}

// Book returns a sorted copy of the current book, or false if no snapshot
// has been received yet.
func (b *Builder) Book() (*OrderBook, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.snapshot {
		return nil, false
	}

	book := &OrderBook{
		MarketID:  b.marketID,
		Bids:      levelsOf(b.bids, true),
		Asks:      levelsOf(b.asks, false),
		Timestamp: b.updated,
	}
	return book, true
}

func levelsOf(side map[int]int, descending bool) []PriceLevel {
	levels := make([]PriceLevel, 0, len(side))
	for cents, size := range side {
		if size <= 0 {
			continue
		}
		p, err := types.PriceFromCents(cents)
		if err != nil {
			continue
		}
		levels = append(levels, PriceLevel{Price: p, Size: size})
	}

	sort.Slice(levels, func(i, j int) bool {
		if descending {
			return levels[j].Price.Value().LessThan(levels[i].Price.Value())
		}
		return levels[i].Price.Value().LessThan(levels[j].Price.Value())
	})
	return levels
}
