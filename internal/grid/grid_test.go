package grid

import (
	"testing"

	"github.com/perpgrid/gridbot/internal/protocol"
)

func approxSlice(t *testing.T, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %v, want %v", got, want)
	}
	for i := range got {
		if diff := got[i] - want[i]; diff > 0.001 || diff < -0.001 {
			t.Fatalf("at %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestComputeLadderFromCleanState(t *testing.T) {
	cfg := DefaultConfig()
	plan := Compute(70000, 70010, 0, cfg)

	if plan.BuyCount != 9 || plan.SellCount != 9 {
		t.Fatalf("expected 9/9 split at p=0, got buy=%d sell=%d", plan.BuyCount, plan.SellCount)
	}

	wantSell := []float64{70015, 70025, 70035, 70045, 70055, 70065, 70075, 70085, 70095}
	wantBuy := []float64{69995, 69985, 69975, 69965, 69955, 69945, 69935, 69925, 69915}
	approxSlice(t, plan.SellPrices, wantSell)
	approxSlice(t, plan.BuyPrices, wantBuy)

	for _, p := range append(append([]float64{}, plan.SellPrices...), plan.BuyPrices...) {
		if p < 61600 || p > 78400 {
			t.Fatalf("price %v outside window [61600, 78400]", p)
		}
	}
}

func TestComputeSkewedByLongPosition(t *testing.T) {
	cfg := DefaultConfig()
	plan := Compute(70000, 70010, 0.0075, cfg)

	if diff := plan.BuyRatio - 0.25; diff > 0.001 || diff < -0.001 {
		t.Fatalf("buy ratio = %v, want 0.25", plan.BuyRatio)
	}
	if diff := plan.SellRatio - 0.75; diff > 0.001 || diff < -0.001 {
		t.Fatalf("sell ratio = %v, want 0.75", plan.SellRatio)
	}
	if plan.SellCount != 13 || plan.BuyCount != 4 {
		t.Fatalf("expected sell=13 buy=4, got sell=%d buy=%d", plan.SellCount, plan.BuyCount)
	}
}

func TestComputePositionCapReached(t *testing.T) {
	cfg := DefaultConfig()
	plan := Compute(70000, 70010, 0.015, cfg)

	if plan.SellCount != 18 || plan.BuyCount != 0 {
		t.Fatalf("expected sell=18 buy=0 at k=k_max, got sell=%d buy=%d", plan.SellCount, plan.BuyCount)
	}
}

func TestSideSplitExactlyAtKMax(t *testing.T) {
	cfg := DefaultConfig()
	buy, sell := sideSplit(cfg.OrderSize*cfg.MaxMultiplier, cfg)
	if buy != 0 || sell != 1 {
		t.Fatalf("expected exact (0,1) at k_max for a long position, got (%v,%v)", buy, sell)
	}
	buy, sell = sideSplit(-cfg.OrderSize*cfg.MaxMultiplier, cfg)
	if buy != 1 || sell != 0 {
		t.Fatalf("expected exact (1,0) at k_max for a short position, got (%v,%v)", buy, sell)
	}
}

func TestSideSplitFlatPosition(t *testing.T) {
	cfg := DefaultConfig()
	buy, sell := sideSplit(0, cfg)
	if buy != 0.5 || sell != 0.5 {
		t.Fatalf("expected (0.5,0.5) at p=0, got (%v,%v)", buy, sell)
	}
}

func TestReconcileCancelsBeforePlacesOrdering(t *testing.T) {
	plan := Plan{
		Mid:        70005,
		SellPrices: []float64{70015, 70025},
		BuyPrices:  []float64{69995, 69985},
	}
	openSells := []float64{70015, 70095} // 70095 is stale, should cancel; 70015 stays
	openBuys := []float64{69995, 69915}  // 69915 stale

	cancels, places := Reconcile(plan, openBuys, openSells)

	if len(cancels) != 2 {
		t.Fatalf("expected 2 cancels, got %d: %+v", len(cancels), cancels)
	}
	// Farthest from mid first.
	if cancels[0].Price != 69915 && cancels[0].Price != 70095 {
		t.Fatalf("unexpected first cancel: %+v", cancels[0])
	}
	for i := 1; i < len(cancels); i++ {
		d0 := distance(cancels[i-1].Price, plan.Mid)
		d1 := distance(cancels[i].Price, plan.Mid)
		if d1 > d0 {
			t.Fatalf("cancels not sorted farthest-first: %+v", cancels)
		}
	}

	if len(places) != 2 {
		t.Fatalf("expected 2 places (70025 sell, 69985 buy), got %d: %+v", len(places), places)
	}
	for i := 1; i < len(places); i++ {
		d0 := distance(places[i-1].Price, plan.Mid)
		d1 := distance(places[i].Price, plan.Mid)
		if d1 < d0 {
			t.Fatalf("places not sorted nearest-first: %+v", places)
		}
	}
}

func TestReconcileLeavesUntouchedOrdersAlone(t *testing.T) {
	plan := Plan{
		Mid:        70005,
		SellPrices: []float64{70015},
		BuyPrices:  []float64{69995},
	}
	cancels, places := Reconcile(plan, []float64{69995}, []float64{70015})
	if len(cancels) != 0 || len(places) != 0 {
		t.Fatalf("expected no changes when open matches target exactly, got cancels=%+v places=%+v", cancels, places)
	}
}

func TestDiffSideTagsCorrectSide(t *testing.T) {
	cancel, place := diffSide(protocol.SideSell, []float64{100}, []float64{110})
	if len(cancel) != 1 || cancel[0].Side != protocol.SideSell {
		t.Fatalf("unexpected cancel: %+v", cancel)
	}
	if len(place) != 1 || place[0].Side != protocol.SideSell {
		t.Fatalf("unexpected place: %+v", place)
	}
}
