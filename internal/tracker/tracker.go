// Package tracker is the bot's authoritative local view of outstanding
// orders. The venue exposes no order-query API, so every placed order must
// be recorded here the moment it's accepted, and every fill or cancel
// reconciled back into it the moment it's known.
package tracker

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/perpgrid/gridbot/internal/protocol"
)

// Order is one locally-tracked order. Status transitions to Filled or
// Cancelled only when it's moved out of the open set and into history.
type Order struct {
	ClientOrderID uint32
	MarketID      uint32
	Side          protocol.Side
	Price         float64
	Size          float64
	PlacedAt      time.Time
	Status        Status
}

// Status is the terminal state recorded in history; open orders carry no
// status of their own beyond "currently tracked".
type Status string

const (
	StatusFilled    Status = "filled"
	StatusCancelled Status = "cancelled"
)

// priceTolerance is the default matching window for FindByPrice, matching
// the cent-scale tolerance order_tracker.py used for locating a resting
// order without an exact price match.
const priceTolerance = 0.01

// Stats summarizes the tracker's current state, mirroring
// order_tracker.py's get_statistics/print_status reporting.
type Stats struct {
	TotalOpen      int
	BuyOrders      int
	SellOrders     int
	TotalFilled    int
	TotalCancelled int
	HistorySize    int
}

// Tracker is the local order book. All operations are serialized by mu; none
// of them block on I/O, so holding the lock across a call is always cheap.
type Tracker struct {
	mu         sync.Mutex
	open       map[uint32]*Order
	history    []*Order
	maxHistory int
}

// New returns an empty Tracker retaining at most maxHistory closed orders.
func New(maxHistory int) *Tracker {
	if maxHistory <= 0 {
		maxHistory = 1000
	}
	return &Tracker{
		open:       make(map[uint32]*Order),
		maxHistory: maxHistory,
	}
}

// Has reports whether id is currently an open order, for the client order id
// allocator's collision check.
func (t *Tracker) Has(id uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.open[id]
	return ok
}

// Add records a newly-placed order as open.
func (t *Tracker) Add(o Order) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := o
	t.open[o.ClientOrderID] = &cp
}

// Remove moves an open order into history under the given terminal status.
// Removing an id that isn't open is a no-op, matching the Python tracker's
// guarded delete.
func (t *Tracker) Remove(id uint32, status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.open[id]
	if !ok {
		return
	}
	o.Status = status
	t.history = append(t.history, o)
	if len(t.history) > t.maxHistory {
		t.history = t.history[len(t.history)-t.maxHistory:]
	}
	delete(t.open, id)
}

// FindByPrice returns the first open order on side within tol of price, or
// false if none matches. tol<=0 selects the default tolerance.
func (t *Tracker) FindByPrice(side protocol.Side, price, tol float64) (Order, bool) {
	if tol <= 0 {
		tol = priceTolerance
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, o := range t.open {
		if o.Side != side {
			continue
		}
		if math.Abs(o.Price-price) < tol {
			return *o, true
		}
	}
	return Order{}, false
}

// ListOpen returns every open order, optionally filtered to one side, sorted
// by ascending price.
func (t *Tracker) ListOpen(side *protocol.Side) []Order {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Order, 0, len(t.open))
	for _, o := range t.open {
		if side != nil && o.Side != *side {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

// Statistics returns a snapshot of open-order counts and historical
// filled/cancelled totals.
func (t *Tracker) Statistics() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	var s Stats
	s.TotalOpen = len(t.open)
	for _, o := range t.open {
		if o.Side == protocol.SideBuy {
			s.BuyOrders++
		} else {
			s.SellOrders++
		}
	}
	s.HistorySize = len(t.history)
	for _, o := range t.history {
		switch o.Status {
		case StatusFilled:
			s.TotalFilled++
		case StatusCancelled:
			s.TotalCancelled++
		}
	}
	return s
}
