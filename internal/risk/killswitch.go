// Package risk gates every generated QuoteSet through an ordered rule
// pipeline before it can reach execution.
//
// Each rule inspects (proposed quotes, context snapshot) and returns one of
// three decisions:
//
//   - ALLOW:  pass the quotes through unchanged
//   - MODIFY: pass amended quotes to the next rule (e.g. capped sizes)
//   - BLOCK:  stop this cycle; no orders are placed
//
// Loss-limit breaches additionally trip a latching kill switch that blocks
// every subsequent cycle until an operator explicitly resets it. Blocks are
// routine control flow and logged at warn; a kill-switch trip is the one
// condition escalated to error-level logging.
package risk

import (
	"sync"
	"time"
)

// KillSwitch is a latching emergency stop. Once active it stays active
// until Reset is called; it never clears on a timer. Repeated activations
// are no-ops so the first trigger, the root cause, is what an operator sees.
type KillSwitch struct {
	mu          sync.Mutex
	active      bool
	reason      string
	activatedAt time.Time
}

func NewKillSwitch() *KillSwitch {
	return &KillSwitch{}
}

// Activate latches the switch with a reason. If already active, the call is
// a no-op and the original reason and timestamp are preserved.
func (k *KillSwitch) Activate(reason string, at time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.active {
		return
	}
	k.active = true
	k.reason = reason
	k.activatedAt = at
}

// Reset clears the switch. This is the only way it deactivates.
func (k *KillSwitch) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.active = false
	k.reason = ""
	k.activatedAt = time.Time{}
}

// Active reports whether the switch is latched.
func (k *KillSwitch) Active() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.active
}

// Reason returns the first activation reason, or "" when inactive.
func (k *KillSwitch) Reason() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.reason
}

// ActivatedAt returns the first activation time, or the zero time when
// inactive.
func (k *KillSwitch) ActivatedAt() time.Time {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.activatedAt
}
