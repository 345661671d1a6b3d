// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package account

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/near/borsh-go"

	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/consts"
)

var (
	ErrInvalidDiscriminator = errors.New("invalid account discriminator")
	ErrTruncated            = errors.New("account data truncated")
)

// Discriminator tags every encoded [StateAccount].
var Discriminator = discriminator("account:UserAccount")

func discriminator(name string) []byte {
	return hashing.ComputeHash256([]byte(name))[:consts.DiscriminatorLen]
}

// DelegationState records which venue holds write authority over an account.
type DelegationState uint8

const (
	Undelegated DelegationState = iota
	Delegated
)

func (d DelegationState) String() string {
	switch d {
	case Undelegated:
		return "undelegated"
	case Delegated:
		return "delegated"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(d))
	}
}

// Randomness is the last value written by an oracle fulfillment. Round
// increases by one with every fulfillment, so a later observation with a
// larger Round was written after an earlier one even when Value repeats.
type Randomness struct {
	Value uint64 `json:"value"`
	Round uint64 `json:"round"`
}

// StateAccount is the record moved between the base ledger and the rollup.
type StateAccount struct {
	// Owner is fixed at creation.
	Owner codec.Address `json:"owner"`
	Data  int64         `json:"data"`

	// Random is only ever written by an oracle fulfillment.
	Random Randomness `json:"random"`

	Delegation DelegationState `json:"delegation"`
	// Validator is the rollup operator authorized while delegated.
	Validator codec.Address `json:"validator"`
}

func (a *StateAccount) IsDelegated() bool {
	return a.Delegation == Delegated
}

// Copy returns a deep copy of a.
func (a *StateAccount) Copy() *StateAccount {
	c := *a
	return &c
}

// Marshal encodes a as [Discriminator] followed by its borsh encoding.
func Marshal(a *StateAccount) ([]byte, error) {
	b, err := borsh.Serialize(*a)
	if err != nil {
		return nil, err
	}
	return append(bytes.Clone(Discriminator), b...), nil
}

// Unmarshal decodes the output of [Marshal].
func Unmarshal(b []byte) (*StateAccount, error) {
	if len(b) < consts.DiscriminatorLen {
		return nil, ErrTruncated
	}
	if !bytes.Equal(b[:consts.DiscriminatorLen], Discriminator) {
		return nil, ErrInvalidDiscriminator
	}
	a := new(StateAccount)
	if err := borsh.Deserialize(a, b[consts.DiscriminatorLen:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	return a, nil
}
