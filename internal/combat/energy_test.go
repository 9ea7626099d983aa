package combat

import (
	"testing"
	"time"
)

func TestConsumeSequence(t *testing.T) {
	m := NewEnergyManager(DefaultPolicy())
	now := time.Now()
	e := m.NewState(now)

	for n := 1; n <= 5; n++ {
		if !m.CanAttack(&e) {
			t.Fatalf("attack %d: expected CanAttack to be true at %d energy", n, e.Current)
		}
		if !m.Consume(&e) {
			t.Fatalf("attack %d: expected Consume to succeed", n)
		}
		if e.Current != 5-n {
			t.Errorf("attack %d: expected %d energy remaining, got %d", n, 5-n, e.Current)
		}
	}

	// Sixth attack with no elapsed time must fail without side effects
	if m.CanAttack(&e) {
		t.Error("expected CanAttack to be false at zero energy")
	}
	if m.Consume(&e) {
		t.Error("expected Consume to fail at zero energy")
	}
	if e.Current != 0 {
		t.Errorf("failed Consume mutated energy to %d", e.Current)
	}
}

func TestConsumePicksLowestSlot(t *testing.T) {
	m := NewEnergyManager(DefaultPolicy())
	e := m.NewState(time.Now())

	m.Consume(&e)
	m.Consume(&e)

	if e.CooldownsMS[0] == 0 || e.CooldownsMS[1] == 0 {
		t.Errorf("expected slots 0 and 1 to be cooling, got %v", e.CooldownsMS)
	}
	for i := 2; i < 5; i++ {
		if e.CooldownsMS[i] != 0 {
			t.Errorf("slot %d unexpectedly cooling: %v", i, e.CooldownsMS)
		}
	}
}

func TestCooldownRecovery(t *testing.T) {
	m := NewEnergyManager(DefaultPolicy())
	e := m.NewState(time.Now())

	m.Consume(&e)

	m.Tick(&e, 29*time.Second+999*time.Millisecond)
	if e.Current != 4 {
		t.Errorf("expected 4 energy just before cooldown completes, got %d", e.Current)
	}

	m.Tick(&e, 1*time.Millisecond)
	if e.Current != 5 {
		t.Errorf("expected energy restored after full 30s cooldown, got %d", e.Current)
	}
	if e.CooldownsMS[0] != 0 {
		t.Errorf("expected slot 0 cooldown to be zero, got %d", e.CooldownsMS[0])
	}
}

func TestAdvanceRestoresFromWallClock(t *testing.T) {
	m := NewEnergyManager(DefaultPolicy())
	start := time.Now()
	e := m.NewState(start)

	for i := 0; i < 5; i++ {
		m.Consume(&e)
	}
	if e.Current != 0 {
		t.Fatalf("expected zero energy after draining, got %d", e.Current)
	}

	// Lazy server-side recomputation: energy comes back without any attack call
	m.Advance(&e, start.Add(31*time.Second))
	if e.Current != 5 {
		t.Errorf("expected full energy after 31s, got %d", e.Current)
	}
	if !m.FullEnergy(&e) {
		t.Error("expected FullEnergy after recovery")
	}
}

func TestTickDoesNotOverflowMax(t *testing.T) {
	m := NewEnergyManager(DefaultPolicy())
	e := m.NewState(time.Now())

	m.Tick(&e, time.Hour)
	if e.Current != 5 {
		t.Errorf("expected energy capped at max, got %d", e.Current)
	}
}

func TestSessionGate(t *testing.T) {
	m := NewEnergyManager(DefaultPolicy())
	start := time.Now()
	e := m.NewState(start)

	if m.SessionExpired(&e, start.Add(1*time.Hour+59*time.Minute)) {
		t.Error("session must not expire at 1h59m")
	}
	if !m.SessionExpired(&e, start.Add(2*time.Hour+1*time.Minute)) {
		t.Error("session must expire at 2h01m")
	}
}

func TestResetSession(t *testing.T) {
	m := NewEnergyManager(DefaultPolicy())
	start := time.Now()
	e := m.NewState(start)

	for i := 0; i < 4; i++ {
		m.Consume(&e)
	}

	later := start.Add(2*time.Hour + time.Minute)
	m.ResetSession(&e, later)

	if e.Current != 5 {
		t.Errorf("expected full energy after reset, got %d", e.Current)
	}
	for i, cd := range e.CooldownsMS {
		if cd != 0 {
			t.Errorf("slot %d still cooling after reset: %d", i, cd)
		}
	}
	if !e.SessionStart.Equal(later) {
		t.Errorf("expected session window to restart at %v, got %v", later, e.SessionStart)
	}
}

func TestConsumeSpecial(t *testing.T) {
	m := NewEnergyManager(DefaultPolicy())
	e := m.NewState(time.Now())

	if !m.ConsumeSpecial(&e) {
		t.Fatal("expected special to succeed at full energy")
	}
	if e.Current != 2 {
		t.Errorf("expected 2 energy after special, got %d", e.Current)
	}

	// Two charges left: below the 3-charge requirement, and no partial drain
	if m.ConsumeSpecial(&e) {
		t.Error("expected special to fail below 3 energy")
	}
	if e.Current != 2 {
		t.Errorf("failed special mutated energy to %d", e.Current)
	}
}

func TestReconcileInvariant(t *testing.T) {
	m := NewEnergyManager(DefaultPolicy())
	now := time.Now()
	e := m.NewState(now)

	// Corrupt Current on purpose; Advance must restore the slot-count invariant
	m.Consume(&e)
	m.Consume(&e)
	e.Current = 5

	m.Advance(&e, now)
	if e.Current != 3 {
		t.Errorf("expected Current reconciled to 3 available slots, got %d", e.Current)
	}
}
