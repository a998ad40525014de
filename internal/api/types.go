// Package api runs the monitoring HTTP/WebSocket server.
//
// It surfaces read-only status (positions, PnL, quotes, kill-switch state)
// plus the one operator write path in the system: activating and resetting
// the kill switch. All numeric values are serialized as decimal strings so
// clients see the exact ledger values, not float approximations.
package api

import "time"

// StatusProvider supplies the data the API surfaces. The controller
// implements it.
type StatusProvider interface {
	Snapshot() Snapshot
	ActivateKillSwitch(reason string)
	ResetKillSwitch()
}

// Snapshot is the complete dashboard state at one instant.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Mode      string    `json:"mode"`

	Markets []MarketStatus `json:"markets"`

	RealizedPnL   string `json:"realized_pnl"`
	UnrealizedPnL string `json:"unrealized_pnl"`
	HourlyPnL     string `json:"hourly_pnl"`
	DailyPnL      string `json:"daily_pnl"`
	TotalFees     string `json:"total_fees"`

	KillSwitch KillStatus `json:"kill_switch"`
}

// MarketStatus is per-market book, quote and position state.
type MarketStatus struct {
	Ticker      string    `json:"ticker"`
	BestBid     string    `json:"best_bid,omitempty"`
	BestAsk     string    `json:"best_ask,omitempty"`
	MidPrice    string    `json:"mid_price,omitempty"`
	BookUpdated time.Time `json:"book_updated"`

	Position   PositionStatus `json:"position"`
	OpenOrders int            `json:"open_orders"`
}

// PositionStatus mirrors one market's position and marks.
type PositionStatus struct {
	YesQuantity   int    `json:"yes_quantity"`
	NoQuantity    int    `json:"no_quantity"`
	AvgYesPrice   string `json:"avg_yes_price,omitempty"`
	AvgNoPrice    string `json:"avg_no_price,omitempty"`
	NetInventory  int    `json:"net_inventory"`
	UnrealizedPnL string `json:"unrealized_pnl"`
}

// KillStatus reports the kill switch.
type KillStatus struct {
	Active      bool       `json:"active"`
	Reason      string     `json:"reason,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}
