package strategy

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"kalshi-mm/pkg/types"
)

// Input is the per-cycle snapshot the engine quotes from. The controller
// assembles it from the book, the state store and market configuration.
type Input struct {
	MarketID         string
	MidPrice         types.Price
	Inventory        int // signed net inventory (long YES positive)
	MaxInventory     int
	BaseSize         int
	TimeToSettlement float64 // hours until settlement
	Timestamp        time.Time
}

// Engine composes the volatility estimator and the four calculators into a
// single quote-generation operation. It is pure per call: all mutable state
// lives in the estimator, which the controller feeds between cycles.
type Engine struct {
	estimator   VolatilityEstimator
	reservation ReservationCalculator
	skew        SkewCalculator
	spread      SpreadCalculator
	sizer       QuoteSizer
	logger      *slog.Logger
}

// NewEngine wires calculators into an engine. Use New (factory.go) to build
// one from configuration.
func NewEngine(
	estimator VolatilityEstimator,
	reservation ReservationCalculator,
	skew SkewCalculator,
	spread SpreadCalculator,
	sizer QuoteSizer,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		estimator:   estimator,
		reservation: reservation,
		skew:        skew,
		spread:      spread,
		sizer:       sizer,
		logger:      logger.With("component", "strategy"),
	}
}

// ObservePrice feeds a price observation into the volatility estimator.
func (e *Engine) ObservePrice(p types.Price) { e.estimator.Update(p) }

// Volatility exposes the current estimate for risk-context assembly.
func (e *Engine) Volatility() decimal.Decimal { return e.estimator.Volatility() }

// ResetVolatility restores the estimator's initial state, e.g. after a
// market settles and quoting restarts on a fresh contract.
func (e *Engine) ResetVolatility() { e.estimator.Reset() }

var tick = decimal.New(1, -2) // 0.01

// GenerateQuotes runs the full pipeline and returns a QuoteSet whose YES
// quote satisfies bid < ask with both prices in [0.01, 0.99]. It never
// fails for valid input: degenerate conditions fall back toward the mid.
func (e *Engine) GenerateQuotes(in Input) types.QuoteSet {
	vol := e.estimator.Volatility()

	reservation := e.reservation.Reservation(in.MidPrice, in.Inventory, vol, in.TimeToSettlement)
	skew := e.skew.Skew(in.Inventory, in.MaxInventory, vol)
	half := e.spread.HalfSpread(vol, in.Inventory, in.MaxInventory, in.TimeToSettlement)

	bidSize, askSize := e.sizer.Sizes(in.Inventory, in.MaxInventory, in.BaseSize)
	// Always leave something placeable on each side; risk rules decide
	// whether a side should actually rest.
	if bidSize < 1 {
		bidSize = 1
	}
	if askSize < 1 {
		askSize = 1
	}

	adjustedMid := reservation.Sub(skew)
	bid := types.ClampPrice(adjustedMid.Sub(half))
	ask := types.ClampPrice(adjustedMid.Add(half))

	// Clamping can cross the quotes when the adjusted mid sits near a price
	// bound. Recenter around the clamped midpoint with a one-tick spread.
	if !bid.Value().LessThan(ask.Value()) {
		center := bid.Value().Add(ask.Value()).Div(decimal.New(2, 0))
		bid = types.ClampPrice(center.Sub(tick))
		ask = types.ClampPrice(center.Add(tick))
	}

	e.logger.Debug("quotes generated",
		"market", in.MarketID,
		"mid", in.MidPrice,
		"reservation", reservation,
		"skew", skew,
		"half_spread", half,
		"bid", bid,
		"ask", ask,
		"bid_size", bidSize,
		"ask_size", askSize,
	)

	return types.QuoteSet{
		MarketID: in.MarketID,
		Yes: types.Quote{
			BidPrice: bid,
			BidSize:  types.MustQuantity(bidSize),
			AskPrice: ask,
			AskSize:  types.MustQuantity(askSize),
		},
		Timestamp: in.Timestamp,
	}
}
