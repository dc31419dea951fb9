// Package supervisor drives the tick loop that sequences every other
// component: indicator engine, risk gate, grid controller, and exchange
// adapter. A single cooperative loop runs one tick at a time, shuts down on
// context cancellation, and backs off after a failed tick rather than
// retrying immediately.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/perpgrid/gridbot/internal/errs"
	"github.com/perpgrid/gridbot/internal/exchange"
	"github.com/perpgrid/gridbot/internal/grid"
	"github.com/perpgrid/gridbot/internal/indicator"
	"github.com/perpgrid/gridbot/internal/metrics"
	"github.com/perpgrid/gridbot/internal/protocol"
	"github.com/perpgrid/gridbot/internal/risk"
	"github.com/perpgrid/gridbot/internal/tracker"
)

// cancelPacing staggers cancels during a cancel-all sweep so the venue's
// rate limits aren't hit by a burst of simultaneous requests.
const cancelPacing = 150 * time.Millisecond

// cancelAllConcurrency bounds how many cancel goroutines run at once during
// a cancel-all sweep.
const cancelAllConcurrency = 4

// Supervisor owns the tick loop. Every collaborator it holds is constructed
// and wired explicitly by main — there is no package-level singleton.
type Supervisor struct {
	Adapter *exchange.Adapter
	Engine  *indicator.Engine
	Gate    *risk.Gate
	Tracker *tracker.Tracker

	GridConfig    grid.Config
	CycleInterval time.Duration
	Backoff       time.Duration
	FlattenOnExit bool
}

// Run drives the tick loop until ctx is cancelled, then runs the shutdown
// sequence (cancel-all, optional flatten) before returning. A session
// creation that's rejected outright (the identity key itself, not a stale
// session) is unrecoverable: Run stops the loop and returns that error
// instead of backing off and retrying forever.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.CycleInterval)
	defer ticker.Stop()

	log.Printf("[SUPERVISOR] starting, cycle_interval=%s", s.CycleInterval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[SUPERVISOR] shutdown signal received")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.Shutdown(shutdownCtx); err != nil {
				log.Printf("[SUPERVISOR] shutdown error: %v", err)
			}
			return nil
		case <-ticker.C:
			if err := s.runTickWithRecovery(ctx); err != nil {
				metrics.IncTickError(classify(err))
				if errors.Is(err, errs.ErrSessionAuthFailure) {
					log.Printf("[SUPERVISOR] fatal: session creation rejected, exiting: %v", err)
					return err
				}
				log.Printf("[SUPERVISOR] tick failed: %v, backing off %s", err, s.Backoff)
				select {
				case <-ctx.Done():
				case <-time.After(s.Backoff):
				}
			}
		}
	}
}

// runTickWithRecovery isolates a single tick so a panic in any collaborator
// degrades to a logged error and a back-off rather than killing the process.
func (s *Supervisor) runTickWithRecovery(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("supervisor: tick panicked: %v", r)
		}
		metrics.ObserveTickDuration(time.Since(start).Seconds())
	}()
	return s.tick(ctx)
}

// tick runs exactly one pass of: indicators -> risk gate -> (if admitted)
// grid reconciliation, or (if denied) the cool-down fallback.
func (s *Supervisor) tick(ctx context.Context) error {
	snap, err := s.Engine.Snapshot(ctx)
	if err != nil {
		if isFeedUnavailable(err) {
			// A missing feed denies admission for this tick without
			// touching cool-down state.
			log.Printf("[SUPERVISOR] feed unavailable this tick: %v", err)
			return nil
		}
		return fmt.Errorf("supervisor: indicator snapshot: %w", err)
	}
	metrics.SetIndicators(snap.RSI, snap.ADX)

	decision := s.Gate.Evaluate(time.Now(), snap.RSI, snap.ADX)
	metrics.SetRegime(regimeLabel(decision))
	active, _, _ := s.Gate.CooldownStatus(time.Now())
	metrics.SetCooldownActive(active)

	if !decision.Admit {
		log.Printf("[RISK] deny: %s (rsi=%.1f adx=%.1f)", decision.Reason, snap.RSI, snap.ADX)
		return s.cooldownFallback(ctx)
	}
	if decision.Cautious {
		log.Printf("[RISK] cautious admit: %s (rsi=%.1f adx=%.1f)", decision.Reason, snap.RSI, snap.ADX)
	}

	return s.reconcileGrid(ctx)
}

// reconcileGrid fetches top of book and position, computes the target
// ladder, diffs it against the tracker's open orders, and issues the
// resulting cancels (farthest-from-mid first) then places
// (nearest-to-mid first).
func (s *Supervisor) reconcileGrid(ctx context.Context) error {
	bid, ask, err := s.Adapter.GetTopOfBook(ctx)
	if err != nil {
		return fmt.Errorf("supervisor: get top of book: %w", err)
	}
	position, _ := s.Adapter.Position()

	plan := grid.Compute(bid, ask, position, s.GridConfig)
	metrics.SetPosition(position)

	openBuys := priceList(s.Tracker.ListOpen(sidePtr(protocol.SideBuy)))
	openSells := priceList(s.Tracker.ListOpen(sidePtr(protocol.SideSell)))

	cancels, places := grid.Reconcile(plan, openBuys, openSells)

	for _, c := range cancels {
		order, found := s.Tracker.FindByPrice(c.Side, c.Price, 0)
		if !found {
			continue
		}
		outcome, err := s.Adapter.CancelOrder(ctx, order.ClientOrderID)
		if err != nil {
			log.Printf("[GRID] cancel %d failed: %v", order.ClientOrderID, err)
			continue
		}
		switch outcome {
		case exchange.CancelOrderCancelled:
			s.Tracker.Remove(order.ClientOrderID, tracker.StatusCancelled)
			metrics.IncOrdersCancelled(sideLabel(c.Side), "cancelled")
		case exchange.CancelOrderAlreadyFilled:
			s.Tracker.Remove(order.ClientOrderID, tracker.StatusFilled)
			metrics.IncOrdersCancelled(sideLabel(c.Side), "already_filled")
		}
	}

	for _, p := range places {
		if _, err := s.Adapter.PlaceOrder(ctx, p.Side, p.Price, s.GridConfig.OrderSize); err != nil {
			if errors.Is(err, errs.ErrPostOnlyWouldMatch) {
				log.Printf("[GRID] place %s@%.2f would have crossed, skipping this tick", sideLabel(p.Side), p.Price)
				continue
			}
			log.Printf("[GRID] place %s@%.2f failed: %v", sideLabel(p.Side), p.Price, err)
			continue
		}
		metrics.IncOrdersPlaced(sideLabel(p.Side))
	}

	metrics.SetLadderSize("buy", len(s.Tracker.ListOpen(sidePtr(protocol.SideBuy))))
	metrics.SetLadderSize("sell", len(s.Tracker.ListOpen(sidePtr(protocol.SideSell))))
	return nil
}

// cooldownFallback runs every tick while the gate denies admission: cancel
// every resting order, then flatten any remaining position.
func (s *Supervisor) cooldownFallback(ctx context.Context) error {
	if err := s.cancelAll(ctx); err != nil {
		return fmt.Errorf("supervisor: cooldown cancel-all: %w", err)
	}
	return s.flattenPosition(ctx)
}

// cancelAll sweeps every order the tracker currently considers open, with at
// most cancelAllConcurrency goroutines at once, each staggered by
// cancelPacing so cancels don't arrive at the venue in one burst. The
// Adapter is not safe for concurrent use, so the CancelOrder calls
// themselves run one at a time.
func (s *Supervisor) cancelAll(ctx context.Context) error {
	open := s.Tracker.ListOpen(nil)
	if len(open) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cancelAllConcurrency)
	var adapterMu sync.Mutex

	for i, o := range open {
		idx, order := i, o
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-time.After(time.Duration(idx%cancelAllConcurrency) * cancelPacing):
			}
			adapterMu.Lock()
			outcome, err := s.Adapter.CancelOrder(gctx, order.ClientOrderID)
			adapterMu.Unlock()
			if err != nil {
				return fmt.Errorf("cancel %d: %w", order.ClientOrderID, err)
			}
			if outcome == exchange.CancelOrderCancelled {
				s.Tracker.Remove(order.ClientOrderID, tracker.StatusCancelled)
				metrics.IncOrdersCancelled(sideLabel(order.Side), "cancelled")
			} else {
				s.Tracker.Remove(order.ClientOrderID, tracker.StatusFilled)
				metrics.IncOrdersCancelled(sideLabel(order.Side), "already_filled")
			}
			return nil
		})
	}
	return g.Wait()
}

// flattenPosition closes any remaining open position with a single
// reduce-only crossing order, priced to guarantee an immediate fill.
func (s *Supervisor) flattenPosition(ctx context.Context) error {
	position, has := s.Adapter.Position()
	if !has || position == 0 {
		return nil
	}
	bid, ask, err := s.Adapter.GetTopOfBook(ctx)
	if err != nil {
		return fmt.Errorf("supervisor: flatten: top of book: %w", err)
	}

	var side protocol.Side
	var price float64
	if position > 0 {
		side, price = protocol.SideSell, bid
	} else {
		side, price = protocol.SideBuy, ask
	}

	size := position
	if size < 0 {
		size = -size
	}
	if _, err := s.Adapter.Flatten(ctx, side, price, size); err != nil {
		return fmt.Errorf("supervisor: flatten: %w", err)
	}
	log.Printf("[SUPERVISOR] flattened position of %.6f via %s@%.2f", position, sideLabel(side), price)
	return nil
}

// Shutdown runs the same cancel-all sweep as the cool-down fallback, then
// flattens any remaining position only if FlattenOnExit is set (an operator
// opt-in, since an unplanned process exit shouldn't silently close a
// position by default).
func (s *Supervisor) Shutdown(ctx context.Context) error {
	log.Printf("[SUPERVISOR] running shutdown cancel-all")
	if err := s.cancelAll(ctx); err != nil {
		log.Printf("[SUPERVISOR] shutdown cancel-all error: %v", err)
	}
	if !s.FlattenOnExit {
		return nil
	}
	return s.flattenPosition(ctx)
}

func regimeLabel(d risk.Decision) string {
	switch d.Reason {
	case risk.ReasonCooldownActive, risk.ReasonStrongTrend, risk.ReasonExtremeRSI:
		if d.Reason == risk.ReasonStrongTrend || d.Reason == risk.ReasonExtremeRSI {
			return "strong_trend"
		}
		return "cooldown"
	case risk.ReasonModerateTrend:
		return "moderate_trend"
	default:
		return "ranging"
	}
}

func sideLabel(s protocol.Side) string {
	if s == protocol.SideBuy {
		return "buy"
	}
	return "sell"
}

func sidePtr(s protocol.Side) *protocol.Side { return &s }

func priceList(orders []tracker.Order) []float64 {
	out := make([]float64, len(orders))
	for i, o := range orders {
		out[i] = o.Price
	}
	return out
}

func isFeedUnavailable(err error) bool {
	return errors.Is(err, errs.ErrFeedUnavailable)
}

func classify(err error) string {
	switch {
	case errors.Is(err, errs.ErrTransport):
		return "transport"
	case errors.Is(err, errs.ErrFeedUnavailable):
		return "feed_unavailable"
	case errors.Is(err, errs.ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, errs.ErrSessionAuthFailure):
		return "session_auth_failure"
	case errors.Is(err, errs.ErrAuthFailure):
		return "auth_failure"
	default:
		return "other"
	}
}
