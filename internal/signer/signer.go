// Package signer implements the two signature shapes the venue's verifier
// expects over a framed message M = varint(len(payload)) ‖ payload.
//
// The two shapes are NOT interchangeable: UserSign signs the lower-case hex
// encoding of M with the long-lived identity key; SessionSign signs M
// itself with the session's ephemeral key. Confusing them, or signing the
// payload without its length prefix, produces a signature the venue
// rejects as a verification failure — there is no partial credit.
package signer

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/perpgrid/gridbot/internal/identity"
	"github.com/perpgrid/gridbot/internal/wire"
)

// UserSign signs hex(M) with the identity key. Used only for CreateSession.
func UserSign(key identity.Key, message []byte) []byte {
	hexMsg := []byte(hex.EncodeToString(message))
	return ed25519.Sign(key.Private, hexMsg)
}

// SessionSign signs M directly with the session's ephemeral key. Used for
// every action issued inside a live session (PlaceOrder, CancelOrder,
// GetTopOfBook, ...).
func SessionSign(key identity.Key, message []byte) []byte {
	return ed25519.Sign(key.Private, message)
}

// SignFunc is the shape both UserSign and SessionSign conform to, letting
// callers plug either one into FrameAndSign without a type switch.
type SignFunc func(key identity.Key, message []byte) []byte

// FrameAndSign builds M from payload, signs it with sign, and returns the
// complete wire frame M ‖ sig ready to POST.
func FrameAndSign(payload []byte, key identity.Key, sign SignFunc) []byte {
	message := wire.BuildMessage(payload)
	sig := sign(key, message)
	frame, err := wire.BuildFrame(message, sig)
	if err != nil {
		// sig is always ed25519.SignatureSize (64) bytes; BuildFrame only
		// rejects a wrong-sized signature, which ed25519.Sign never produces.
		panic(err)
	}
	return frame
}

// Verify checks a wire frame against pub using shape-specific reconstruction
// of the signed message. It is used by tests (and could back a conforming
// mock verifier) to assert the signing contract is exact.
func Verify(frame []byte, pub ed25519.PublicKey, hexEncoded bool) bool {
	if len(frame) < wire.SignatureSize {
		return false
	}
	message := frame[:len(frame)-wire.SignatureSize]
	sig := frame[len(frame)-wire.SignatureSize:]
	if hexEncoded {
		return ed25519.Verify(pub, []byte(hex.EncodeToString(message)), sig)
	}
	return ed25519.Verify(pub, message, sig)
}
