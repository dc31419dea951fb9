// Package exchange is the venue adapter: session lifecycle, client order id
// allocation, and the three trading operations (place, cancel, top of
// book), all speaking the framed/signed wire protocol in internal/wire,
// internal/signer, and internal/protocol.
//
// The adapter is owned exclusively by the supervisor's tick loop; nothing
// else mutates its session state or calls it concurrently, so it carries no
// locks of its own.
package exchange

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/perpgrid/gridbot/internal/errs"
	"github.com/perpgrid/gridbot/internal/identity"
	"github.com/perpgrid/gridbot/internal/protocol"
	"github.com/perpgrid/gridbot/internal/signer"
	"github.com/perpgrid/gridbot/internal/tracker"
	"github.com/perpgrid/gridbot/internal/wire"
)

// priceScale converts between the float prices/sizes the rest of the bot
// works in and the integer 10^-8 units the wire protocol carries.
const priceScale = 1e8

// clientOrderIDModulus bounds the micros-since-epoch allocator.
const clientOrderIDModulus = (1 << 31) - 1

// sessionStatus is the session lifecycle state machine: none, creating, or
// live.
type sessionStatus int

const (
	sessionNone sessionStatus = iota
	sessionCreating
	sessionLive
)

type session struct {
	status sessionStatus
	id     uint64
	key    identity.Key
	expiry time.Time
}

// Config parameterizes an Adapter's network behavior.
type Config struct {
	APIURL      string
	MarketID    uint32
	HTTPTimeout time.Duration // default 10s
	SessionTTL  time.Duration // default 1h; the venue doesn't document a fixed lifetime
	RenewBefore time.Duration // default 5m
}

// DefaultConfig fills in the adapter's documented defaults.
func DefaultConfig(apiURL string, marketID uint32) Config {
	return Config{
		APIURL:      apiURL,
		MarketID:    marketID,
		HTTPTimeout: 10 * time.Second,
		SessionTTL:  time.Hour,
		RenewBefore: 5 * time.Minute,
	}
}

// Adapter is the venue client. It holds the identity key, the current
// session (if any), and the tracker it records newly-placed orders into.
type Adapter struct {
	cfg      Config
	identity identity.Key
	hc       *http.Client
	tracker  *tracker.Tracker

	sess session

	hasPosition bool
	position    float64
}

// New constructs an Adapter. httpClient may be nil, in which case one is
// built from cfg.HTTPTimeout.
func New(cfg Config, id identity.Key, ord *tracker.Tracker, httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &Adapter{cfg: cfg, identity: id, hc: httpClient, tracker: ord}
}

// EnsureSession is idempotent: it makes no network call while the current
// session is live and more than RenewBefore from expiry; otherwise it
// performs exactly one create_session round trip.
func (a *Adapter) EnsureSession(ctx context.Context) error {
	if a.sess.status == sessionLive && time.Now().Add(a.cfg.RenewBefore).Before(a.sess.expiry) {
		return nil
	}
	return a.createSession(ctx)
}

func (a *Adapter) createSession(ctx context.Context) error {
	a.sess.status = sessionCreating
	ephemeral, err := identity.GenerateSessionKey()
	if err != nil {
		return fmt.Errorf("exchange: generate session key: %w", err)
	}

	expiry := time.Now().Add(a.cfg.SessionTTL)
	var userPub, sessPub [32]byte
	copy(userPub[:], a.identity.Public)
	copy(sessPub[:], ephemeral.Public)

	action := &protocol.Action{
		Timestamp: time.Now().Unix(),
		Nonce:     nonce(),
		Kind:      protocol.ActionCreateSession,
		CreateSession: &protocol.CreateSessionAction{
			UserPubKey:      userPub,
			SessionPubKey:   sessPub,
			ExpiryTimestamp: expiry.Unix(),
		},
	}
	payload, err := action.Marshal()
	if err != nil {
		return fmt.Errorf("exchange: marshal create_session: %w", err)
	}
	frame := signer.FrameAndSign(payload, a.identity, signer.UserSign)

	receipt, err := a.post(ctx, frame)
	if err != nil {
		a.sess.status = sessionNone
		return err
	}
	if receipt.Kind == protocol.ReceiptError {
		a.sess.status = sessionNone
		if receipt.Error.Code == protocol.ErrorAuthFailure {
			return fmt.Errorf("exchange: create_session: %w", errs.ErrSessionAuthFailure)
		}
		return fmt.Errorf("exchange: create_session: %w", errs.ErrTransport)
	}
	if receipt.Kind != protocol.ReceiptCreateSessionResult {
		a.sess.status = sessionNone
		return fmt.Errorf("exchange: create_session: unexpected receipt kind %d", receipt.Kind)
	}

	a.sess = session{
		status: sessionLive,
		id:     receipt.CreateSessionResult.SessionID,
		key:    ephemeral,
		expiry: time.Unix(receipt.CreateSessionResult.ExpiryTimestamp, 0),
	}
	return nil
}

// PlaceOrder submits a post-only limit order and, on success, records it in
// the tracker. price and size are plain decimals; size must be positive,
// side's sign convention is applied on the wire.
func (a *Adapter) PlaceOrder(ctx context.Context, side protocol.Side, price, size float64) (uint32, error) {
	id := a.allocateClientOrderID()
	signedSize := int64(size * priceScale)
	if side == protocol.SideSell {
		signedSize = -signedSize
	}

	receipt, err := a.doSessionSigned(ctx, func(sessionID uint64) *protocol.Action {
		return &protocol.Action{
			Timestamp: time.Now().Unix(),
			Nonce:     nonce(),
			Kind:      protocol.ActionPlaceOrder,
			PlaceOrder: &protocol.PlaceOrderAction{
				SessionID:     sessionID,
				MarketID:      a.cfg.MarketID,
				ClientOrderID: id,
				Side:          side,
				PostOnly:      true,
				Price:         int64(price * priceScale),
				Size:          signedSize,
			},
		}
	})
	if err != nil {
		return 0, err
	}

	if receipt.Kind == protocol.ReceiptError {
		switch receipt.Error.Code {
		case protocol.ErrorPostOnlyWouldMatch:
			return 0, errs.ErrPostOnlyWouldMatch
		default:
			return 0, fmt.Errorf("exchange: place_order: %s: %w", receipt.Error.Message, errs.ErrTransport)
		}
	}
	if receipt.Kind != protocol.ReceiptPlaceOrderResult {
		return 0, fmt.Errorf("exchange: place_order: unexpected receipt kind %d", receipt.Kind)
	}

	orderID := receipt.PlaceOrderResult.OrderID
	a.tracker.Add(tracker.Order{
		ClientOrderID: orderID,
		MarketID:      a.cfg.MarketID,
		Side:          side,
		Price:         price,
		Size:          size,
		PlacedAt:      time.Now(),
	})
	return orderID, nil
}

// Flatten submits a reduce-only, crossing order sized to fully close size
// on side. It's the cool-down and shutdown path's only use of a
// non-post-only order — a post-only order can never close a position once
// the book has moved through it.
func (a *Adapter) Flatten(ctx context.Context, side protocol.Side, price, size float64) (uint32, error) {
	id := a.allocateClientOrderID()
	signedSize := int64(size * priceScale)
	if side == protocol.SideSell {
		signedSize = -signedSize
	}

	receipt, err := a.doSessionSigned(ctx, func(sessionID uint64) *protocol.Action {
		return &protocol.Action{
			Timestamp: time.Now().Unix(),
			Nonce:     nonce(),
			Kind:      protocol.ActionPlaceOrder,
			PlaceOrder: &protocol.PlaceOrderAction{
				SessionID:     sessionID,
				MarketID:      a.cfg.MarketID,
				ClientOrderID: id,
				Side:          side,
				PostOnly:      false,
				ReduceOnly:    true,
				Price:         int64(price * priceScale),
				Size:          signedSize,
			},
		}
	})
	if err != nil {
		return 0, err
	}
	if receipt.Kind == protocol.ReceiptError {
		return 0, fmt.Errorf("exchange: flatten: %s: %w", receipt.Error.Message, errs.ErrTransport)
	}
	if receipt.Kind != protocol.ReceiptPlaceOrderResult {
		return 0, fmt.Errorf("exchange: flatten: unexpected receipt kind %d", receipt.Kind)
	}
	return receipt.PlaceOrderResult.OrderID, nil
}

// CancelOrderOutcome distinguishes a genuine cancel from "the order had
// already filled".
type CancelOrderOutcome int

const (
	CancelOrderCancelled CancelOrderOutcome = iota
	CancelOrderAlreadyFilled
)

// CancelOrder cancels a resting order. OrderNotFound is not an error: it
// means the order filled before the cancel landed, and the caller should
// still remove it from the tracker.
func (a *Adapter) CancelOrder(ctx context.Context, orderID uint32) (CancelOrderOutcome, error) {
	receipt, err := a.doSessionSigned(ctx, func(sessionID uint64) *protocol.Action {
		return &protocol.Action{
			Timestamp: time.Now().Unix(),
			Nonce:     nonce(),
			Kind:      protocol.ActionCancelOrder,
			CancelOrder: &protocol.CancelOrderAction{
				SessionID: sessionID,
				MarketID:  a.cfg.MarketID,
				OrderID:   orderID,
			},
		}
	})
	if err != nil {
		return 0, err
	}

	if receipt.Kind == protocol.ReceiptError {
		switch receipt.Error.Code {
		case protocol.ErrorOrderNotFound:
			return CancelOrderAlreadyFilled, nil
		default:
			return 0, fmt.Errorf("exchange: cancel_order: %s: %w", receipt.Error.Message, errs.ErrTransport)
		}
	}
	if receipt.Kind != protocol.ReceiptCancelOrderResult {
		return 0, fmt.Errorf("exchange: cancel_order: unexpected receipt kind %d", receipt.Kind)
	}
	return CancelOrderCancelled, nil
}

// GetTopOfBook returns the current best bid/ask, converted from wire
// integer units back to plain decimals.
func (a *Adapter) GetTopOfBook(ctx context.Context) (bid, ask float64, err error) {
	receipt, err := a.doSessionSigned(ctx, func(sessionID uint64) *protocol.Action {
		return &protocol.Action{
			Timestamp: time.Now().Unix(),
			Nonce:     nonce(),
			Kind:      protocol.ActionGetTopOfBook,
			GetTopOfBook: &protocol.GetTopOfBookAction{
				SessionID: sessionID,
				MarketID:  a.cfg.MarketID,
			},
		}
	})
	if err != nil {
		return 0, 0, err
	}
	if receipt.Kind == protocol.ReceiptError {
		return 0, 0, fmt.Errorf("exchange: get_top_of_book: %s: %w", receipt.Error.Message, errs.ErrTransport)
	}
	if receipt.Kind != protocol.ReceiptTopOfBookResult {
		return 0, 0, fmt.Errorf("exchange: get_top_of_book: unexpected receipt kind %d", receipt.Kind)
	}
	tb := receipt.TopOfBookResult
	return float64(tb.BestBid) / priceScale, float64(tb.BestAsk) / priceScale, nil
}

// doSessionSigned ensures a live session, builds and sends one
// session-signed action, and retries exactly once if the venue reports the
// session expired or the action's signature was rejected mid-flight. In
// either case the session is invalidated and recreated before the retry; a
// second failure of the same kind within the same call is a hard failure
// for the tick. Note that EnsureSession's own recreate can fail with
// errs.ErrSessionAuthFailure, which propagates straight through — that's a
// rejection of the identity key itself, not something a retry here can fix.
func (a *Adapter) doSessionSigned(ctx context.Context, build func(sessionID uint64) *protocol.Action) (*protocol.Receipt, error) {
	if err := a.EnsureSession(ctx); err != nil {
		return nil, err
	}

	receipt, err := a.sendAction(ctx, build(a.sess.id))
	if err != nil {
		return nil, err
	}
	if receipt.Kind == protocol.ReceiptError &&
		(receipt.Error.Code == protocol.ErrorSessionExpired || receipt.Error.Code == protocol.ErrorAuthFailure) {
		a.sess.status = sessionNone
		if err := a.EnsureSession(ctx); err != nil {
			return nil, err
		}
		receipt, err = a.sendAction(ctx, build(a.sess.id))
		if err != nil {
			return nil, err
		}
		if receipt.Kind == protocol.ReceiptError {
			switch receipt.Error.Code {
			case protocol.ErrorSessionExpired:
				return nil, fmt.Errorf("exchange: session expired twice in one call: %w", errs.ErrSessionExpired)
			case protocol.ErrorAuthFailure:
				return nil, fmt.Errorf("exchange: auth failure twice in one call: %w", errs.ErrAuthFailure)
			}
		}
	}
	return receipt, nil
}

func (a *Adapter) sendAction(ctx context.Context, action *protocol.Action) (*protocol.Receipt, error) {
	payload, err := action.Marshal()
	if err != nil {
		return nil, fmt.Errorf("exchange: marshal action: %w", err)
	}
	frame := signer.FrameAndSign(payload, a.sess.key, signer.SessionSign)
	return a.post(ctx, frame)
}

// post sends a signed frame to the venue's /action endpoint and decodes the
// response receipt.
func (a *Adapter) post(ctx context.Context, frame []byte) (*protocol.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.HTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.APIURL+"/action", bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("exchange: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := a.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange: %w: %v", errs.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("exchange: read response: %w", errs.ErrTransport)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange: http %d: %w", resp.StatusCode, errs.ErrTransport)
	}

	payload, err := wire.DecodeResponse(body)
	if err != nil {
		return nil, fmt.Errorf("exchange: decode response: %w", err)
	}
	receipt, err := protocol.UnmarshalReceipt(payload)
	if err != nil {
		return nil, fmt.Errorf("exchange: unmarshal receipt: %w", err)
	}
	if receipt.HasPosition {
		a.hasPosition = true
		a.position = float64(receipt.Position) / priceScale
	}
	return receipt, nil
}

// Position returns the most recently observed position heartbeat: post
// remembers the latest one from any receipt that carries it. The bool is
// false until some receipt has carried one.
func (a *Adapter) Position() (float64, bool) {
	return a.position, a.hasPosition
}

// allocateClientOrderID derives a fresh id from the current microsecond
// clock, retrying on collision against the tracker's open-order set.
func (a *Adapter) allocateClientOrderID() uint32 {
	for {
		id := uint32(time.Now().UnixMicro() % clientOrderIDModulus)
		if id == 0 {
			id = 1
		}
		if !a.tracker.Has(id) {
			return id
		}
	}
}

// nonce is a per-action anti-replay counter; the wire format only requires
// it be present, not monotonic across process restarts, since there is no
// persisted state.
func nonce() uint32 {
	return uint32(time.Now().UnixNano())
}
