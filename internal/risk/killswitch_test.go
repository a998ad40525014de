package risk

import (
	"testing"
	"time"
)

func TestKillSwitchLatches(t *testing.T) {
	t.Parallel()

	k := NewKillSwitch()
	if k.Active() {
		t.Fatal("new switch must be inactive")
	}

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	k.Activate("daily loss limit", at)

	if !k.Active() {
		t.Error("switch should be active after Activate")
	}
	if k.Reason() != "daily loss limit" {
		t.Errorf("Reason = %q", k.Reason())
	}
	if !k.ActivatedAt().Equal(at) {
		t.Errorf("ActivatedAt = %s, want %s", k.ActivatedAt(), at)
	}
}

func TestKillSwitchFirstReasonWins(t *testing.T) {
	t.Parallel()

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Minute)

	k := NewKillSwitch()
	k.Activate("first trigger", first)
	k.Activate("second trigger", second)

	if k.Reason() != "first trigger" {
		t.Errorf("Reason = %q, want first reason preserved", k.Reason())
	}
	if !k.ActivatedAt().Equal(first) {
		t.Errorf("ActivatedAt = %s, want first timestamp preserved", k.ActivatedAt())
	}
}

func TestKillSwitchResetIsExplicit(t *testing.T) {
	t.Parallel()

	k := NewKillSwitch()
	k.Activate("trip", time.Now())
	k.Reset()

	if k.Active() {
		t.Error("switch should be inactive after Reset")
	}
	if k.Reason() != "" {
		t.Errorf("Reason = %q, want empty after reset", k.Reason())
	}

	// Re-activation after reset records the new reason.
	later := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	k.Activate("new trip", later)
	if k.Reason() != "new trip" || !k.ActivatedAt().Equal(later) {
		t.Errorf("after reset: Reason=%q ActivatedAt=%s", k.Reason(), k.ActivatedAt())
	}
}
