package supervisor

import (
	"context"
	"crypto/ed25519"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/perpgrid/gridbot/internal/candle"
	"github.com/perpgrid/gridbot/internal/errs"
	"github.com/perpgrid/gridbot/internal/exchange"
	"github.com/perpgrid/gridbot/internal/grid"
	"github.com/perpgrid/gridbot/internal/identity"
	"github.com/perpgrid/gridbot/internal/indicator"
	"github.com/perpgrid/gridbot/internal/protocol"
	"github.com/perpgrid/gridbot/internal/risk"
	"github.com/perpgrid/gridbot/internal/tracker"
	"github.com/perpgrid/gridbot/internal/wire"
)

// flatFeed returns a constant-price candle history, which drives RSI to
// 100 (no losses at all, same branch as an all-gains series) and ADX to 0
// (no true range at all), landing squarely in the risk gate's
// RSIOutOfBand deny case regardless of the ADX thresholds.
type flatFeed struct{ price float64 }

func (f flatFeed) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]candle.Candle, limit)
	for i := range out {
		out[i] = candle.Candle{Open: f.price, High: f.price, Low: f.price, Close: f.price, Interval: base.Add(time.Duration(i) * time.Minute)}
	}
	return out, nil
}

// mockVenue scripts the handful of receipts the supervisor's tick needs:
// session creation, cancel, top of book, and a reduce-only place (flatten).
type mockVenue struct {
	t *testing.T

	cancelCalls  []uint32
	flattenCalls []protocol.PlaceOrderAction

	authFailureOnCreate bool
}

func (m *mockVenue) handler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		m.t.Fatalf("read body: %v", err)
	}
	payload, err := wire.DecodeResponse(body)
	if err != nil {
		m.t.Fatalf("decode frame: %v", err)
	}
	action, err := protocol.UnmarshalAction(payload)
	if err != nil {
		m.t.Fatalf("unmarshal action: %v", err)
	}

	var receipt *protocol.Receipt
	switch action.Kind {
	case protocol.ActionCreateSession:
		if m.authFailureOnCreate {
			receipt = &protocol.Receipt{Kind: protocol.ReceiptError, Error: &protocol.ErrorResult{Code: protocol.ErrorAuthFailure}}
			break
		}
		receipt = &protocol.Receipt{
			Kind: protocol.ReceiptCreateSessionResult,
			CreateSessionResult: &protocol.CreateSessionResult{
				SessionID:       1,
				ExpiryTimestamp: time.Now().Add(time.Hour).Unix(),
			},
		}
	case protocol.ActionCancelOrder:
		m.cancelCalls = append(m.cancelCalls, action.CancelOrder.OrderID)
		receipt = &protocol.Receipt{
			Kind:              protocol.ReceiptCancelOrderResult,
			CancelOrderResult: &protocol.CancelOrderResult{},
			HasPosition:       true,
			Position:          500000, // 0.005 once divided by priceScale
		}
	case protocol.ActionGetTopOfBook:
		receipt = &protocol.Receipt{
			Kind:            protocol.ReceiptTopOfBookResult,
			TopOfBookResult: &protocol.TopOfBookResult{BestBid: 9999000000, BestAsk: 10001000000},
		}
	case protocol.ActionPlaceOrder:
		if action.PlaceOrder.ReduceOnly {
			m.flattenCalls = append(m.flattenCalls, *action.PlaceOrder)
		}
		receipt = &protocol.Receipt{
			Kind:             protocol.ReceiptPlaceOrderResult,
			PlaceOrderResult: &protocol.PlaceOrderResult{OrderID: action.PlaceOrder.ClientOrderID},
		}
	default:
		m.t.Fatalf("unexpected action kind %d", action.Kind)
	}

	out, err := receipt.Marshal()
	if err != nil {
		m.t.Fatalf("marshal receipt: %v", err)
	}
	resp := wire.BuildMessage(out)
	w.WriteHeader(http.StatusOK)
	w.Write(resp)
}

func newTestSupervisor(t *testing.T, venue *mockVenue, feed candle.Feed) (*Supervisor, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(venue.handler))

	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate identity key: %v", err)
	}
	id := identity.Key{Public: priv.Public().(ed25519.PublicKey), Private: priv}

	cfg := exchange.DefaultConfig(srv.URL, 0)
	cfg.HTTPTimeout = 2 * time.Second
	trk := tracker.New(100)
	adapter := exchange.New(cfg, id, trk, srv.Client())

	sup := &Supervisor{
		Adapter:       adapter,
		Engine:        indicator.NewEngine(feed, "BTC-PERP", "1m"),
		Gate:          risk.New(risk.DefaultConfig()),
		Tracker:       trk,
		GridConfig:    grid.DefaultConfig(),
		CycleInterval: time.Second,
		Backoff:       time.Second,
	}
	return sup, srv
}

func TestTickDeniesAndFlattensOnExtremeRSI(t *testing.T) {
	venue := &mockVenue{t: t}
	sup, srv := newTestSupervisor(t, venue, flatFeed{price: 100})
	defer srv.Close()

	sup.Tracker.Add(tracker.Order{ClientOrderID: 42, Side: protocol.SideBuy, Price: 99.5, Size: 0.001})

	if err := sup.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if sup.Tracker.Has(42) {
		t.Fatal("expected the pre-existing open order to be cancelled during the deny fallback")
	}
	if len(venue.cancelCalls) != 1 || venue.cancelCalls[0] != 42 {
		t.Fatalf("cancelCalls = %v, want exactly [42]", venue.cancelCalls)
	}
	if len(venue.flattenCalls) != 1 {
		t.Fatalf("flattenCalls = %d, want 1", len(venue.flattenCalls))
	}
	fc := venue.flattenCalls[0]
	if fc.PostOnly || !fc.ReduceOnly {
		t.Fatalf("flatten order PostOnly=%v ReduceOnly=%v, want false/true", fc.PostOnly, fc.ReduceOnly)
	}
	if fc.Side != protocol.SideSell {
		t.Fatalf("flatten side = %v, want sell to reduce a long position", fc.Side)
	}

	active, reason, _ := sup.Gate.CooldownStatus(time.Now())
	if !active || reason != risk.ReasonRSIOutOfBand {
		t.Fatalf("cooldown = (%v, %v), want (true, %v)", active, reason, risk.ReasonRSIOutOfBand)
	}
}

func TestTickNoOpWhenNoOpenOrdersAndNoPosition(t *testing.T) {
	venue := &mockVenue{t: t}
	sup, srv := newTestSupervisor(t, venue, flatFeed{price: 100})
	defer srv.Close()

	if err := sup.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(venue.cancelCalls) != 0 {
		t.Fatalf("expected no cancels with an empty tracker, got %v", venue.cancelCalls)
	}
	// No position heartbeat has been observed yet, so flatten must not fire.
	if len(venue.flattenCalls) != 0 {
		t.Fatalf("expected no flatten with no observed position, got %d", len(venue.flattenCalls))
	}
}

func TestRunExitsFatallyOnSessionAuthFailure(t *testing.T) {
	venue := &mockVenue{t: t, authFailureOnCreate: true}
	sup, srv := newTestSupervisor(t, venue, flatFeed{price: 100})
	defer srv.Close()
	sup.CycleInterval = 10 * time.Millisecond
	// An open order makes the deny fallback's cancel-all reach the venue,
	// which is what forces a session creation in the first place.
	sup.Tracker.Add(tracker.Order{ClientOrderID: 42, Side: protocol.SideBuy, Price: 99.5, Size: 0.001})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := sup.Run(ctx)
	if err == nil {
		t.Fatal("expected Run to return an error when session creation is rejected")
	}
	if !errors.Is(err, errs.ErrSessionAuthFailure) {
		t.Fatalf("err = %v, want errs.ErrSessionAuthFailure", err)
	}
}
