package wire

// SignatureSize is fixed for the venue's signature scheme (ed25519): 64
// bytes, appended verbatim after the framed message.
const SignatureSize = 64

// BuildMessage returns M = varint(len(payload)) ‖ payload. This is the
// exact byte sequence both signature shapes in internal/signer operate on;
// neither shape signs payload alone.
func BuildMessage(payload []byte) []byte {
	m := EncodeVarint(make([]byte, 0, 1+len(payload)), uint64(len(payload)))
	return append(m, payload...)
}

// BuildFrame appends sig to an already-built message M, producing the
// final request body M ‖ sig. sig must be exactly SignatureSize bytes.
func BuildFrame(message, sig []byte) ([]byte, error) {
	if len(sig) != SignatureSize {
		return nil, &ErrMalformedFrame{Reason: "signature is not 64 bytes"}
	}
	frame := make([]byte, 0, len(message)+SignatureSize)
	frame = append(frame, message...)
	frame = append(frame, sig...)
	return frame, nil
}

// DecodeResponse reads a response body of the form varint(len(R)) ‖ R and
// returns R. Bytes beyond the declared length are ignored, per the wire
// protocol's framing rule.
func DecodeResponse(body []byte) ([]byte, error) {
	length, n, err := DecodeVarint(body, 0)
	if err != nil {
		return nil, err
	}
	end := n + int(length)
	if end > len(body) {
		return nil, &ErrMalformedFrame{Reason: "declared length exceeds body"}
	}
	return body[n:end], nil
}
