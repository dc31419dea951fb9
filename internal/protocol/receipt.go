package protocol

import "fmt"

// ReceiptKind tags which case of Receipt is populated.
type ReceiptKind byte

const (
	ReceiptError ReceiptKind = iota + 1
	ReceiptCreateSessionResult
	ReceiptPlaceOrderResult
	ReceiptCancelOrderResult
	ReceiptTopOfBookResult
)

// ErrorCode enumerates the outcome kinds the venue can signal in an error
// receipt.
type ErrorCode byte

const (
	ErrorNone ErrorCode = iota
	ErrorAuthFailure
	ErrorSessionExpired
	ErrorOrderNotFound
	ErrorPostOnlyWouldMatch
	ErrorUnknown
)

// Receipt is the discriminated union of everything the venue can return.
// Position carries an optional out-of-band position heartbeat that any
// receipt, success or failure, may include (HasPosition says whether it
// does), so the adapter never needs a separate poll.
type Receipt struct {
	Kind ReceiptKind

	Error *ErrorResult

	CreateSessionResult *CreateSessionResult
	PlaceOrderResult    *PlaceOrderResult
	CancelOrderResult   *CancelOrderResult
	TopOfBookResult     *TopOfBookResult

	HasPosition bool
	Position    int64 // signed integer units of 10^-8
}

// ErrorResult carries the outcome kind for a rejected action.
type ErrorResult struct {
	Code    ErrorCode
	Message string
}

// CreateSessionResult carries the server-issued session id and expiry.
type CreateSessionResult struct {
	SessionID       uint64
	ExpiryTimestamp int64
}

// PlaceOrderResult reports the accepted order's id.
type PlaceOrderResult struct {
	OrderID uint32
}

// CancelOrderResult carries no fields; its presence alone means "cancelled".
type CancelOrderResult struct{}

// TopOfBookResult carries the current best bid/ask, in 10^-8 price units.
type TopOfBookResult struct {
	BestBid int64
	BestAsk int64
}

// Marshal encodes r into the venue's receipt wire format.
func (r *Receipt) Marshal() ([]byte, error) {
	buf := make([]byte, 0, 48)
	buf = append(buf, byte(r.Kind))

	switch r.Kind {
	case ReceiptError:
		e := r.Error
		if e == nil {
			return nil, fmt.Errorf("protocol: Kind=Error but Error is nil")
		}
		buf = append(buf, byte(e.Code))
		msg := []byte(e.Message)
		buf = appendUint32(buf, uint32(len(msg)))
		buf = append(buf, msg...)
	case ReceiptCreateSessionResult:
		cs := r.CreateSessionResult
		if cs == nil {
			return nil, fmt.Errorf("protocol: Kind=CreateSessionResult but result is nil")
		}
		buf = appendUint64(buf, cs.SessionID)
		buf = appendInt64(buf, cs.ExpiryTimestamp)
	case ReceiptPlaceOrderResult:
		po := r.PlaceOrderResult
		if po == nil {
			return nil, fmt.Errorf("protocol: Kind=PlaceOrderResult but result is nil")
		}
		buf = appendUint32(buf, po.OrderID)
	case ReceiptCancelOrderResult:
		// no fields
	case ReceiptTopOfBookResult:
		tb := r.TopOfBookResult
		if tb == nil {
			return nil, fmt.Errorf("protocol: Kind=TopOfBookResult but result is nil")
		}
		buf = appendInt64(buf, tb.BestBid)
		buf = appendInt64(buf, tb.BestAsk)
	default:
		return nil, fmt.Errorf("protocol: unknown receipt kind %d", r.Kind)
	}

	buf = appendBool(buf, r.HasPosition)
	if r.HasPosition {
		buf = appendInt64(buf, r.Position)
	}
	return buf, nil
}

// UnmarshalReceipt decodes a receipt payload as produced by Marshal.
func UnmarshalReceipt(buf []byte) (*Receipt, error) {
	r := &reader{buf: buf}
	rec := &Receipt{}

	kind, err := r.byte_()
	if err != nil {
		return nil, err
	}
	rec.Kind = ReceiptKind(kind)

	switch rec.Kind {
	case ReceiptError:
		code, err := r.byte_()
		if err != nil {
			return nil, err
		}
		msgLen, err := r.uint32()
		if err != nil {
			return nil, err
		}
		msg := make([]byte, msgLen)
		if err := r.fixed(msg); err != nil {
			return nil, err
		}
		rec.Error = &ErrorResult{Code: ErrorCode(code), Message: string(msg)}
	case ReceiptCreateSessionResult:
		cs := &CreateSessionResult{}
		if cs.SessionID, err = r.uint64(); err != nil {
			return nil, err
		}
		if cs.ExpiryTimestamp, err = r.int64(); err != nil {
			return nil, err
		}
		rec.CreateSessionResult = cs
	case ReceiptPlaceOrderResult:
		po := &PlaceOrderResult{}
		if po.OrderID, err = r.uint32(); err != nil {
			return nil, err
		}
		rec.PlaceOrderResult = po
	case ReceiptCancelOrderResult:
		rec.CancelOrderResult = &CancelOrderResult{}
	case ReceiptTopOfBookResult:
		tb := &TopOfBookResult{}
		if tb.BestBid, err = r.int64(); err != nil {
			return nil, err
		}
		if tb.BestAsk, err = r.int64(); err != nil {
			return nil, err
		}
		rec.TopOfBookResult = tb
	default:
		return nil, fmt.Errorf("protocol: unknown receipt kind %d", rec.Kind)
	}

	hasPos, err := r.byte_()
	if err != nil {
		return nil, err
	}
	rec.HasPosition = hasPos != 0
	if rec.HasPosition {
		if rec.Position, err = r.int64(); err != nil {
			return nil, err
		}
	}
	return rec, nil
}
