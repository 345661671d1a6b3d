// Copyright (C) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ed25519

import (
	"crypto/ed25519"

	"github.com/hdevalence/ed25519consensus"

	"github.com/ava-labs/erstate/codec"
)

type (
	PublicKey  [ed25519.PublicKeySize]byte
	PrivateKey [ed25519.PrivateKeySize]byte
	Signature  [ed25519.SignatureSize]byte
)

// We use the ZIP-215 specification for ed25519 signature
// verification (https://zips.z.cash/zip-0215) because it provides
// an explicit validity criteria for signatures and is broadly
// compatible with signatures produced by almost all ed25519
// implementations (which don't require canonically-encoded points).
const (
	PublicKeyLen  = ed25519.PublicKeySize
	PrivateKeyLen = ed25519.PrivateKeySize
	// PrivateKeySeedLen is defined because ed25519.PrivateKey
	// is formatted as privateKey = seed|publicKey. We use this const
	// to extract the publicKey below.
	PrivateKeySeedLen = ed25519.SeedSize
	SignatureLen      = ed25519.SignatureSize
)

var (
	EmptyPublicKey  = [ed25519.PublicKeySize]byte{}
	EmptyPrivateKey = [ed25519.PrivateKeySize]byte{}
	EmptySignature  = [ed25519.SignatureSize]byte{}
)

// GeneratePrivateKey returns a Ed25519 PrivateKey.
func GeneratePrivateKey() (PrivateKey, error) {
	_, k, err := ed25519.GenerateKey(nil)
	if err != nil {
		return EmptyPrivateKey, err
	}
	return PrivateKey(k), nil
}

// PrivateKeyFromSeed deterministically derives a PrivateKey from a 32 byte seed.
func PrivateKeyFromSeed(seed []byte) (PrivateKey, error) {
	if len(seed) != PrivateKeySeedLen {
		return EmptyPrivateKey, ErrInvalidPrivateKey
	}
	return PrivateKey(ed25519.NewKeyFromSeed(seed)), nil
}

// PrivateKeyFromHex parses either a full private key or its seed.
func PrivateKeyFromHex(s string) (PrivateKey, error) {
	b, err := codec.LoadHex(s, -1)
	if err != nil {
		return EmptyPrivateKey, err
	}
	switch len(b) {
	case PrivateKeyLen:
		return PrivateKey(b), nil
	case PrivateKeySeedLen:
		return PrivateKeyFromSeed(b)
	default:
		return EmptyPrivateKey, ErrInvalidPrivateKey
	}
}

// PublicKey returns a PublicKey associated with the Ed25519 PrivateKey p.
// The PublicKey is the last 32 bytes of p.
func (p PrivateKey) PublicKey() PublicKey {
	return PublicKey(p[PrivateKeySeedLen:])
}

// Address is the ledger identity controlled by p.
func (p PrivateKey) Address() codec.Address {
	return p.PublicKey().Address()
}

// Sign implements the signer used to authorize transactions.
func (p PrivateKey) Sign(msg []byte) Signature {
	return Sign(msg, p)
}

func (p PrivateKey) Hex() string {
	return codec.ToHex(p[:])
}

// Address returns the ledger identity of p. Keys and identities share the
// same 32 bytes.
func (p PublicKey) Address() codec.Address {
	return codec.Address(p)
}

// Sign returns a valid signature for msg using pk.
func Sign(msg []byte, pk PrivateKey) Signature {
	sig := ed25519.Sign(pk[:], msg)
	return Signature(sig)
}

// Verify returns whether s is a valid signature of msg by p.
func Verify(msg []byte, p PublicKey, s Signature) bool {
	return ed25519consensus.Verify(p[:], msg, s[:])
}

// VerifyAddress is [Verify] for an identity expressed as an [codec.Address].
func VerifyAddress(msg []byte, addr codec.Address, s Signature) bool {
	return Verify(msg, PublicKey(addr), s)
}
