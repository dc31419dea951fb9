package risk

import (
	"testing"
	"time"
)

func TestDecideStrongTrendDenies(t *testing.T) {
	cfg := DefaultConfig()
	d := decide(cfg, 55, 35)
	if d.Admit || !d.TriggerCooldown || d.Reason != ReasonStrongTrend {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestDecideModerateTrendExtremeRSIDenies(t *testing.T) {
	cfg := DefaultConfig()
	d := decide(cfg, 80, 27)
	if d.Admit || !d.TriggerCooldown || d.Reason != ReasonExtremeRSI {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestDecideModerateTrendCautiousAdmit(t *testing.T) {
	cfg := DefaultConfig()
	d := decide(cfg, 50, 27)
	if !d.Admit || !d.Cautious || d.TriggerCooldown {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestDecideRangingOutOfBandDenies(t *testing.T) {
	cfg := DefaultConfig()
	d := decide(cfg, 75, 20)
	if d.Admit || !d.TriggerCooldown || d.Reason != ReasonRSIOutOfBand {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestDecideRangingAdmits(t *testing.T) {
	cfg := DefaultConfig()
	d := decide(cfg, 50, 20)
	if !d.Admit || d.Cautious || d.TriggerCooldown {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestDecideBoundaryADXExactlyThirtyIsNotStrongTrend(t *testing.T) {
	cfg := DefaultConfig()
	d := decide(cfg, 50, 30)
	if !d.Admit || !d.Cautious {
		t.Fatalf("ADX exactly at the strong-trend threshold should fall into moderate trend, got %+v", d)
	}
}

func TestDecideBoundaryADXExactlyTwentyFiveIsRanging(t *testing.T) {
	cfg := DefaultConfig()
	d := decide(cfg, 50, 25)
	if !d.Admit || d.Cautious {
		t.Fatalf("ADX exactly at the trend threshold should fall into ranging, got %+v", d)
	}
}

func TestGateCooldownBlocksUntilExit(t *testing.T) {
	g := New(DefaultConfig())
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	d := g.Evaluate(t0, 55, 35)
	if d.Admit {
		t.Fatal("expected strong trend to deny and trigger cooldown")
	}

	mid := t0.Add(5 * time.Minute)
	d = g.Evaluate(mid, 50, 10)
	if d.Admit || d.Reason != ReasonCooldownActive {
		t.Fatalf("expected cooldown to still be active, got %+v", d)
	}

	active, _, remaining := g.CooldownStatus(mid)
	if !active || remaining <= 0 {
		t.Fatalf("expected active cooldown with positive remaining time, got active=%v remaining=%v", active, remaining)
	}

	after := t0.Add(15*time.Minute + time.Second)
	d = g.Evaluate(after, 50, 10)
	if !d.Admit {
		t.Fatalf("expected cooldown to have expired and gate to re-evaluate fresh, got %+v", d)
	}
}

func TestGateReset(t *testing.T) {
	g := New(DefaultConfig())
	t0 := time.Now()
	g.Evaluate(t0, 55, 35)
	g.Reset()
	active, _, _ := g.CooldownStatus(t0)
	if active {
		t.Fatal("expected Reset to clear the cooldown immediately")
	}
}
