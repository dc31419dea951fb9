// Package identity loads the long-lived identity key used only for session
// creation (see signer.UserSign) and generates the ephemeral session key
// pairs the adapter mints for each live session.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// Key wraps an ed25519 key pair. The venue's identity keys are distributed
// base58-encoded, the same encoding Solana-style wallets use.
type Key struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// LoadIdentityKey decodes a base58 private key into an identity Key. It
// accepts both the 32-byte seed form and the 64-byte seed‖public form.
func LoadIdentityKey(base58Key string) (Key, error) {
	raw, err := base58.Decode(base58Key)
	if err != nil {
		return Key{}, fmt.Errorf("identity: decode base58 key: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		priv := ed25519.NewKeyFromSeed(raw)
		return Key{Public: priv.Public().(ed25519.PublicKey), Private: priv}, nil
	case ed25519.PrivateKeySize:
		priv := ed25519.PrivateKey(raw)
		return Key{Public: priv.Public().(ed25519.PublicKey), Private: priv}, nil
	default:
		return Key{}, fmt.Errorf("identity: key has %d bytes, want %d or %d", len(raw), ed25519.SeedSize, ed25519.PrivateKeySize)
	}
}

// GenerateSessionKey mints a fresh ephemeral key pair for a new session.
// Every session creation mints a new one, as required by §4.3.2 —
// reusing an ephemeral key across sessions risks a DUPLICATE rejection from
// the venue.
func GenerateSessionKey() (Key, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Key{}, fmt.Errorf("identity: generate session key: %w", err)
	}
	return Key{Public: pub, Private: priv}, nil
}
