package risk

import (
	"fmt"
	"log/slog"

	"kalshi-mm/pkg/types"
)

// Manager pipes proposed quotes through its rules in order. It is a
// straight-line reduction: the only state carried between rules is the
// current (possibly modified) quotes, plus the kill switch's side effect.
type Manager struct {
	rules      []Rule
	killSwitch *KillSwitch
	logger     *slog.Logger
}

// NewManager creates a manager with a fixed rule order and a fresh,
// inactive kill switch.
func NewManager(rules []Rule, logger *slog.Logger) *Manager {
	return &Manager{
		rules:      rules,
		killSwitch: NewKillSwitch(),
		logger:     logger.With("component", "risk"),
	}
}

// KillSwitch exposes the switch for operator reset and status reporting.
func (m *Manager) KillSwitch() *KillSwitch {
	return m.killSwitch
}

// Evaluate runs the pipeline:
//
//  1. An active kill switch blocks immediately; no rules run.
//  2. Rules run in configured order against the cumulative quotes. A rule
//     requesting kill-switch activation latches it (first reason wins).
//     BLOCK short-circuits; MODIFY replaces the quotes seen by later rules.
//  3. If any rule modified the quotes, the final decision is MODIFY with
//     the cumulative result; otherwise ALLOW.
func (m *Manager) Evaluate(quotes types.QuoteSet, ctx Context) Decision {
	if m.killSwitch.Active() {
		return BlockDecision(fmt.Sprintf("kill switch active: %s", m.killSwitch.Reason()))
	}

	current := quotes
	modified := false

	for _, rule := range m.rules {
		decision := rule.Evaluate(current, ctx)

		if decision.TriggerKillSwitch {
			m.killSwitch.Activate(decision.Reason, ctx.Now)
			m.logger.Error("kill switch activated",
				"rule", rule.Name(),
				"reason", decision.Reason,
			)
		}

		switch decision.Action {
		case Block:
			m.logger.Warn("quotes blocked",
				"rule", rule.Name(),
				"market", quotes.MarketID,
				"reason", decision.Reason,
			)
			return decision
		case Modify:
			if decision.Modified != nil {
				current = *decision.Modified
				modified = true
				m.logger.Info("quotes modified",
					"rule", rule.Name(),
					"market", quotes.MarketID,
					"reason", decision.Reason,
				)
			}
		}
	}

	if modified {
		return Decision{Action: Modify, Modified: &current}
	}
	return AllowDecision()
}
