// Package protocol implements the wire payload carried inside each framed
// request/response: the Action the adapter sends and the Receipt the venue
// returns. Both are modeled as Go discriminated unions — a Kind tag plus
// exactly one populated case — and dispatched exhaustively.
//
// The exact byte layout here is this repository's own; the real venue's
// schema isn't independently documented, so the layout favors a stable,
// explicit encoding over guessing at an undocumented protobuf schema.
package protocol

import (
	"encoding/binary"
	"fmt"
)

// ActionKind tags which case of Action is populated.
type ActionKind byte

const (
	ActionCreateSession ActionKind = iota + 1
	ActionPlaceOrder
	ActionCancelOrder
	ActionGetTopOfBook
)

// Side is the order side carried on the wire; sign convention (buy
// positive, sell negative) is applied to Size by the caller, not here.
type Side byte

const (
	SideBuy  Side = 0
	SideSell Side = 1
)

// Action is the discriminated union of everything the adapter can send.
// Exactly one of the embedded pointers is non-nil, selected by Kind.
type Action struct {
	Timestamp int64
	Nonce     uint32
	Kind      ActionKind

	CreateSession *CreateSessionAction
	PlaceOrder    *PlaceOrderAction
	CancelOrder   *CancelOrderAction
	GetTopOfBook  *GetTopOfBookAction
}

// CreateSessionAction establishes a new session bound to an ephemeral key.
type CreateSessionAction struct {
	UserPubKey      [32]byte
	SessionPubKey   [32]byte
	ExpiryTimestamp int64
}

// PlaceOrderAction posts a single limit order. PostOnly is set on every
// order the grid controller issues; ReduceOnly is set only by the
// cool-down/shutdown flatten path, which is also the only caller allowed to
// clear PostOnly (a flatten must be able to cross the book to actually
// reduce the position).
type PlaceOrderAction struct {
	SessionID     uint64
	MarketID      uint32
	ClientOrderID uint32
	Side          Side
	PostOnly      bool
	ReduceOnly    bool
	Price         int64 // integer units of 10^-8
	Size          int64 // signed integer units of 10^-8 (buy +, sell -)
}

// CancelOrderAction cancels a single resting order by client order id.
type CancelOrderAction struct {
	SessionID uint64
	MarketID  uint32
	OrderID   uint32
}

// GetTopOfBookAction requests the current best bid/ask for a market. It is
// session-signed like every other action, keeping the wire protocol uniform
// instead of carving out an unsigned read path.
type GetTopOfBookAction struct {
	SessionID uint64
	MarketID  uint32
}

// Marshal encodes a into the venue's action wire format.
func (a *Action) Marshal() ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = appendInt64(buf, a.Timestamp)
	buf = appendUint32(buf, a.Nonce)
	buf = append(buf, byte(a.Kind))

	switch a.Kind {
	case ActionCreateSession:
		cs := a.CreateSession
		if cs == nil {
			return nil, fmt.Errorf("protocol: Kind=CreateSession but CreateSession is nil")
		}
		buf = append(buf, cs.UserPubKey[:]...)
		buf = append(buf, cs.SessionPubKey[:]...)
		buf = appendInt64(buf, cs.ExpiryTimestamp)
	case ActionPlaceOrder:
		po := a.PlaceOrder
		if po == nil {
			return nil, fmt.Errorf("protocol: Kind=PlaceOrder but PlaceOrder is nil")
		}
		buf = appendUint64(buf, po.SessionID)
		buf = appendUint32(buf, po.MarketID)
		buf = appendUint32(buf, po.ClientOrderID)
		buf = append(buf, byte(po.Side))
		buf = appendBool(buf, po.PostOnly)
		buf = appendBool(buf, po.ReduceOnly)
		buf = appendInt64(buf, po.Price)
		buf = appendInt64(buf, po.Size)
	case ActionCancelOrder:
		co := a.CancelOrder
		if co == nil {
			return nil, fmt.Errorf("protocol: Kind=CancelOrder but CancelOrder is nil")
		}
		buf = appendUint64(buf, co.SessionID)
		buf = appendUint32(buf, co.MarketID)
		buf = appendUint32(buf, co.OrderID)
	case ActionGetTopOfBook:
		tb := a.GetTopOfBook
		if tb == nil {
			return nil, fmt.Errorf("protocol: Kind=GetTopOfBook but GetTopOfBook is nil")
		}
		buf = appendUint64(buf, tb.SessionID)
		buf = appendUint32(buf, tb.MarketID)
	default:
		return nil, fmt.Errorf("protocol: unknown action kind %d", a.Kind)
	}
	return buf, nil
}

// UnmarshalAction decodes an action payload. It is primarily used by tests
// and by a conforming mock verifier; the live adapter only ever marshals.
func UnmarshalAction(buf []byte) (*Action, error) {
	r := &reader{buf: buf}
	a := &Action{}
	var err error
	if a.Timestamp, err = r.int64(); err != nil {
		return nil, err
	}
	if a.Nonce, err = r.uint32(); err != nil {
		return nil, err
	}
	kind, err := r.byte_()
	if err != nil {
		return nil, err
	}
	a.Kind = ActionKind(kind)

	switch a.Kind {
	case ActionCreateSession:
		cs := &CreateSessionAction{}
		if err := r.fixed(cs.UserPubKey[:]); err != nil {
			return nil, err
		}
		if err := r.fixed(cs.SessionPubKey[:]); err != nil {
			return nil, err
		}
		if cs.ExpiryTimestamp, err = r.int64(); err != nil {
			return nil, err
		}
		a.CreateSession = cs
	case ActionPlaceOrder:
		po := &PlaceOrderAction{}
		if po.SessionID, err = r.uint64(); err != nil {
			return nil, err
		}
		if po.MarketID, err = r.uint32(); err != nil {
			return nil, err
		}
		if po.ClientOrderID, err = r.uint32(); err != nil {
			return nil, err
		}
		side, err := r.byte_()
		if err != nil {
			return nil, err
		}
		po.Side = Side(side)
		postOnly, err := r.byte_()
		if err != nil {
			return nil, err
		}
		po.PostOnly = postOnly != 0
		reduceOnly, err := r.byte_()
		if err != nil {
			return nil, err
		}
		po.ReduceOnly = reduceOnly != 0
		if po.Price, err = r.int64(); err != nil {
			return nil, err
		}
		if po.Size, err = r.int64(); err != nil {
			return nil, err
		}
		a.PlaceOrder = po
	case ActionCancelOrder:
		co := &CancelOrderAction{}
		if co.SessionID, err = r.uint64(); err != nil {
			return nil, err
		}
		if co.MarketID, err = r.uint32(); err != nil {
			return nil, err
		}
		if co.OrderID, err = r.uint32(); err != nil {
			return nil, err
		}
		a.CancelOrder = co
	case ActionGetTopOfBook:
		tb := &GetTopOfBookAction{}
		if tb.SessionID, err = r.uint64(); err != nil {
			return nil, err
		}
		if tb.MarketID, err = r.uint32(); err != nil {
			return nil, err
		}
		a.GetTopOfBook = tb
	default:
		return nil, fmt.Errorf("protocol: unknown action kind %d", a.Kind)
	}
	return a, nil
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendInt64(buf []byte, v int64) []byte {
	return appendUint64(buf, uint64(v))
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("protocol: payload truncated")
	}
	return nil
}

func (r *reader) byte_() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) fixed(dst []byte) error {
	if err := r.need(len(dst)); err != nil {
		return err
	}
	copy(dst, r.buf[r.pos:r.pos+len(dst)])
	r.pos += len(dst)
	return nil
}

func (r *reader) uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) uint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) int64() (int64, error) {
	v, err := r.uint64()
	return int64(v), err
}
