// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"fmt"
	"math/rand"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/near/borsh-go"

	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/consts"
	"github.com/ava-labs/erstate/crypto/ed25519"
)

// Operation names a state-account instruction.
type Operation uint8

const (
	Initialize Operation = iota + 1
	Update
	Delegate
	RequestRandomness
	ConsumeRandomness
	UpdateCommit
	Commit
	Undelegate
	Close
)

var operationNames = map[Operation]string{
	Initialize:        "initialize",
	Update:            "update",
	Delegate:          "delegate",
	RequestRandomness: "requestRandomness",
	ConsumeRandomness: "consumeRandomness",
	UpdateCommit:      "updateCommit",
	Commit:            "commit",
	Undelegate:        "undelegate",
	Close:             "close",
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("operation(%d)", uint8(o))
}

func (o Operation) Valid() bool {
	_, ok := operationNames[o]
	return ok
}

func (o Operation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Operation) UnmarshalText(b []byte) error {
	for op, name := range operationNames {
		if name == string(b) {
			*o = op
			return nil
		}
	}
	return fmt.Errorf("%w: unknown operation %q", ErrMalformed, b)
}

// Args are the typed arguments of an [Operation]. Each operation reads only
// the fields it needs.
type Args struct {
	// Value is the new data of Update and UpdateCommit.
	Value int64 `json:"value"`
	// Validator is the rollup operator named by Delegate.
	Validator codec.Address `json:"validator"`
	// Queue is the oracle queue named by RequestRandomness.
	Queue codec.Address `json:"queue"`
	// Seed is the caller seed of RequestRandomness.
	Seed uint8 `json:"seed"`
	// Request is the RequestRandomness transaction fulfilled by
	// ConsumeRandomness.
	Request ids.ID `json:"request"`
	// Randomness is the oracle output delivered by ConsumeRandomness.
	Randomness [consts.RandomnessLen]byte `json:"randomness"`
}

// Signer authorizes transactions.
type Signer interface {
	Address() codec.Address
	Sign(msg []byte) ed25519.Signature
}

// Transaction invokes one [Operation] on one account.
type Transaction struct {
	Op      Operation     `json:"op"`
	Account codec.Address `json:"account"`
	Signer  codec.Address `json:"signer"`
	Args    Args          `json:"args"`
	Nonce   uint64        `json:"nonce"`

	Signature ed25519.Signature `json:"signature"`
}

// NewTransaction returns an unsigned transaction with a fresh nonce.
func NewTransaction(op Operation, acct codec.Address, args Args) *Transaction {
	return &Transaction{
		Op:      op,
		Account: acct,
		Args:    args,
		Nonce:   rand.Uint64(), //nolint:gosec
	}
}

type unsignedTransaction struct {
	Op      uint8
	Account codec.Address
	Signer  codec.Address
	Args    Args
	Nonce   uint64
}

// Digest is the message covered by the signature.
func (tx *Transaction) Digest() ([]byte, error) {
	return borsh.Serialize(unsignedTransaction{
		Op:      uint8(tx.Op),
		Account: tx.Account,
		Signer:  tx.Signer,
		Args:    tx.Args,
		Nonce:   tx.Nonce,
	})
}

// Sign sets the signer of tx and signs it.
func (tx *Transaction) Sign(s Signer) error {
	tx.Signer = s.Address()
	digest, err := tx.Digest()
	if err != nil {
		return err
	}
	tx.Signature = s.Sign(digest)
	return nil
}

// Verify checks that tx is well formed and signed by tx.Signer.
func (tx *Transaction) Verify() error {
	if !tx.Op.Valid() {
		return fmt.Errorf("%w: unknown operation %d", ErrMalformed, tx.Op)
	}
	if tx.Account.Empty() {
		return fmt.Errorf("%w: missing account", ErrMalformed)
	}
	digest, err := tx.Digest()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if !ed25519.VerifyAddress(digest, tx.Signer, tx.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

// ID uniquely identifies a signed transaction.
func (tx *Transaction) ID() (ids.ID, error) {
	digest, err := tx.Digest()
	if err != nil {
		return ids.Empty, err
	}
	return ids.ID(hashing.ComputeHash256Array(append(digest, tx.Signature[:]...))), nil
}

type signedTransaction struct {
	Unsigned  unsignedTransaction
	Signature ed25519.Signature
}

// Marshal encodes tx for transport.
func (tx *Transaction) Marshal() ([]byte, error) {
	return borsh.Serialize(signedTransaction{
		Unsigned: unsignedTransaction{
			Op:      uint8(tx.Op),
			Account: tx.Account,
			Signer:  tx.Signer,
			Args:    tx.Args,
			Nonce:   tx.Nonce,
		},
		Signature: tx.Signature,
	})
}

// UnmarshalTransaction decodes the output of [Transaction.Marshal]. The
// signature is not checked.
func UnmarshalTransaction(b []byte) (*Transaction, error) {
	var s signedTransaction
	if err := borsh.Deserialize(&s, b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return &Transaction{
		Op:        Operation(s.Unsigned.Op),
		Account:   s.Unsigned.Account,
		Signer:    s.Unsigned.Signer,
		Args:      s.Unsigned.Args,
		Nonce:     s.Unsigned.Nonce,
		Signature: s.Signature,
	}, nil
}
