package controller

import (
	"time"

	"github.com/shopspring/decimal"

	"kalshi-mm/internal/api"
	"kalshi-mm/pkg/types"
)

// Snapshot assembles the dashboard view. Safe to call from the API
// goroutines: it only reads through mutex-guarded components (builders,
// store, execution engine, kill switch) and never touches loop-local
// state.
func (c *Controller) Snapshot() api.Snapshot {
	now := time.Now()
	unrealizedTotal := decimal.Zero

	statuses := make([]api.MarketStatus, 0, len(c.markets))
	for ticker, ms := range c.markets {
		status := api.MarketStatus{
			Ticker:     ticker,
			OpenOrders: len(c.exec.OpenOrders(ticker)),
		}

		var mark *types.Price
		if book, ok := ms.builder.Book(); ok {
			status.BookUpdated = book.Timestamp
			if bid, ok := book.BestBid(); ok {
				status.BestBid = bid.Price.String()
			}
			if ask, ok := book.BestAsk(); ok {
				status.BestAsk = ask.Price.String()
			}
			if mid, ok := book.MidPrice(); ok {
				status.MidPrice = mid.String()
				mark = &mid
			}
		}

		pos, _ := c.store.Position(ticker)
		status.Position = api.PositionStatus{
			YesQuantity:   pos.YesQuantity,
			NoQuantity:    pos.NoQuantity,
			NetInventory:  pos.NetInventory(),
			UnrealizedPnL: "0",
		}
		if pos.AvgYesPrice != nil {
			status.Position.AvgYesPrice = pos.AvgYesPrice.String()
		}
		if pos.AvgNoPrice != nil {
			status.Position.AvgNoPrice = pos.AvgNoPrice.String()
		}
		if mark != nil {
			unrealized := c.store.UnrealizedPnL(ticker, *mark)
			status.Position.UnrealizedPnL = unrealized.StringFixed(2)
			unrealizedTotal = unrealizedTotal.Add(unrealized)
		}

		statuses = append(statuses, status)
	}

	sessionID := ""
	if c.repo != nil {
		sessionID = c.repo.SessionID()
	}

	ks := c.riskMgr.KillSwitch()
	kill := api.KillStatus{Active: ks.Active()}
	if kill.Active {
		kill.Reason = ks.Reason()
		at := ks.ActivatedAt()
		kill.ActivatedAt = &at
	}

	return api.Snapshot{
		Timestamp:     now,
		SessionID:     sessionID,
		Mode:          c.cfg.Mode,
		Markets:       statuses,
		RealizedPnL:   c.store.RealizedPnL().StringFixed(2),
		UnrealizedPnL: unrealizedTotal.StringFixed(2),
		HourlyPnL:     c.store.HourlyPnL().StringFixed(2),
		DailyPnL:      c.store.DailyPnL().StringFixed(2),
		TotalFees:     c.store.TotalFees().StringFixed(2),
		KillSwitch:    kill,
	}
}

// ActivateKillSwitch trips the kill switch on operator request. Resting
// orders are pulled on the next quote cycle, when the blocked evaluation
// cancels them.
func (c *Controller) ActivateKillSwitch(reason string) {
	now := time.Now()
	c.riskMgr.KillSwitch().Activate(reason, now)
	c.logger.Error("kill switch activated by operator", "reason", reason)
	if c.broadcaster != nil {
		c.broadcaster.Broadcast(api.NewKillEvent(true, c.riskMgr.KillSwitch().Reason(), now))
	}
}

// ResetKillSwitch clears the latch so quoting can resume.
func (c *Controller) ResetKillSwitch() {
	c.riskMgr.KillSwitch().Reset()
	c.logger.Info("kill switch reset by operator")
	if c.broadcaster != nil {
		c.broadcaster.Broadcast(api.NewKillEvent(false, "", time.Now()))
	}
}
