// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/mr-tron/base58"

	"github.com/ava-labs/erstate/consts"
)

const AddressLen = consts.AddressLen

// Address identifies a principal or an account on either venue. Its text
// form is base58, matching the key format used by the ledgers.
type Address [AddressLen]byte

var EmptyAddress = Address{}

// CreateAddress returns the [Address] with the same bytes as [id].
func CreateAddress(id ids.ID) Address {
	return Address(id)
}

// ToAddress copies [b] into an [Address]. [b] must be exactly
// [AddressLen] bytes.
func ToAddress(b []byte) (Address, error) {
	if len(b) != AddressLen {
		return EmptyAddress, fmt.Errorf("%w: expected %d bytes but got %d", ErrInvalidSize, AddressLen, len(b))
	}
	return Address(b), nil
}

// StringToAddress parses the base58 form of an address.
func StringToAddress(s string) (Address, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return EmptyAddress, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	a, err := ToAddress(b)
	if err != nil {
		return EmptyAddress, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return a, nil
}

// MustStringToAddress is [StringToAddress] for compile-time constants.
func MustStringToAddress(s string) Address {
	a, err := StringToAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) Empty() bool {
	return a == EmptyAddress
}

// MarshalText returns the base58 representation of a.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses a base58-encoded address.
func (a *Address) UnmarshalText(input []byte) error {
	parsed, err := StringToAddress(string(input))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
