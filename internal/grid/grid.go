// Package grid implements the grid-ladder controller: given the top of
// book, open position, and ladder geometry, it computes the target set of
// resting orders for the tick and the place/cancel diff against what's
// currently open.
package grid

import (
	"math"
	"sort"

	"github.com/perpgrid/gridbot/internal/protocol"
)

// Config is the ladder geometry: total order count, window fraction, safe
// gap, spacing, order size, and the position multiplier (N, W, δ, g, o,
// k_max).
type Config struct {
	TotalOrders     int     // N, typ. 18
	WindowFraction  float64 // W, typ. 0.12
	SafeGap         float64 // δ, typ. 5
	Spacing         float64 // g, typ. 10
	OrderSize       float64 // o, typ. 0.001
	MaxMultiplier   float64 // k_max, typ. 15
	PriceTick       float64 // exchange price tick; target prices are rounded to this
}

// DefaultConfig returns the typical ladder parameters.
func DefaultConfig() Config {
	return Config{
		TotalOrders:    18,
		WindowFraction: 0.12,
		SafeGap:        5,
		Spacing:        10,
		OrderSize:      0.001,
		MaxMultiplier:  15,
		PriceTick:      0.01,
	}
}

// Plan is the ladder computed for one tick.
type Plan struct {
	Mid                float64
	Lower, Upper       float64
	BuyRatio, SellRatio float64
	BuyCount, SellCount int
	// BuyPrices and SellPrices are ordered nearest-to-mid first.
	BuyPrices, SellPrices []float64
}

// Compute derives the target ladder from the current top of book and
// position. bid and ask must satisfy bid <= ask; position is signed
// base-asset size (positive long, negative short).
func Compute(bid, ask, position float64, cfg Config) Plan {
	mid := (bid + ask) / 2
	lower := mid * (1 - cfg.WindowFraction)
	upper := mid * (1 + cfg.WindowFraction)

	buyRatio, sellRatio := sideSplit(position, cfg)
	sellCount := int(math.Floor(float64(cfg.TotalOrders) * sellRatio))
	buyCount := int(math.Floor(float64(cfg.TotalOrders) * buyRatio))

	plan := Plan{
		Mid: mid, Lower: lower, Upper: upper,
		BuyRatio: buyRatio, SellRatio: sellRatio,
		BuyCount: buyCount, SellCount: sellCount,
	}
	plan.SellPrices = levels(ask+cfg.SafeGap, cfg.Spacing, upper, sellCount, cfg.PriceTick)
	plan.BuyPrices = levels(bid-cfg.SafeGap, -cfg.Spacing, lower, buyCount, cfg.PriceTick)
	return plan
}

// sideSplit implements step 2 of the controller: the side holding the
// position gets starved as |p| grows, hitting (0,1) or (1,0) exactly at
// k_max, never a blended ratio past that point.
func sideSplit(position float64, cfg Config) (buyRatio, sellRatio float64) {
	if position == 0 {
		return 0.5, 0.5
	}
	k := math.Abs(position) / cfg.OrderSize
	long := position > 0

	if k >= cfg.MaxMultiplier {
		if long {
			return 0, 1
		}
		return 1, 0
	}

	r := k / cfg.MaxMultiplier
	if long {
		return 0.5 * (1 - r), 0.5 * (1 + r)
	}
	return 0.5 * (1 + r), 0.5 * (1 - r)
}

// levels walks from start in steps of size step (signed; negative walks
// down) for at most count levels, stopping at the first level that crosses
// bound. Prices are rounded to tick. bound is an upper bound when step>0,
// a lower bound when step<0.
func levels(start, step, bound float64, count int, tick float64) []float64 {
	if count <= 0 {
		return nil
	}
	out := make([]float64, 0, count)
	price := start
	for len(out) < count {
		if step > 0 && price > bound {
			break
		}
		if step < 0 && price < bound {
			break
		}
		out = append(out, discretize(price, tick))
		price += step
	}
	return out
}

func discretize(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}

// Level is one side-tagged price, used both for the target ladder and for
// the place/cancel diff output.
type Level struct {
	Side  protocol.Side
	Price float64
}

// priceBucket rounds to the nearest cent, the granularity at which the diff
// treats two prices as "the same" level.
func priceBucket(p float64) float64 {
	return math.Round(p*100) / 100
}

// Reconcile computes the symmetric difference between the plan's target
// ladder and the currently open orders on each side, returning cancels and
// places in the order the controller must issue them: all cancels before
// any place, cancels farthest-from-mid first, places nearest-to-mid first.
func Reconcile(plan Plan, openBuys, openSells []float64) (cancels, places []Level) {
	cb, pb := diffSide(protocol.SideBuy, openBuys, plan.BuyPrices)
	cs, ps := diffSide(protocol.SideSell, openSells, plan.SellPrices)

	cancels = append(cb, cs...)
	places = append(pb, ps...)

	sort.Slice(cancels, func(i, j int) bool {
		return distance(cancels[i].Price, plan.Mid) > distance(cancels[j].Price, plan.Mid)
	})
	sort.Slice(places, func(i, j int) bool {
		return distance(places[i].Price, plan.Mid) < distance(places[j].Price, plan.Mid)
	})
	return cancels, places
}

func distance(price, mid float64) float64 {
	return math.Abs(price - mid)
}

func diffSide(side protocol.Side, open, target []float64) (cancel, place []Level) {
	openSet := make(map[float64]bool, len(open))
	for _, p := range open {
		openSet[priceBucket(p)] = true
	}
	targetSet := make(map[float64]bool, len(target))
	for _, p := range target {
		targetSet[priceBucket(p)] = true
	}

	for _, p := range open {
		if !targetSet[priceBucket(p)] {
			cancel = append(cancel, Level{Side: side, Price: p})
		}
	}
	for _, p := range target {
		if !openSet[priceBucket(p)] {
			place = append(place, Level{Side: side, Price: p})
		}
	}
	return cancel, place
}
