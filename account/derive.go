// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package account

import (
	"github.com/ava-labs/avalanchego/utils/hashing"

	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/consts"
)

const derivationMarker = "ProgramDerivedAddress"

// Deriver maps an owner identity to the address of its state account.
type Deriver interface {
	Derive(owner codec.Address) codec.Address
}

var _ Deriver = ProgramDeriver{}

// ProgramDeriver derives addresses from the seeds ["user", owner] under a
// program identity. The same owner always maps to the same address.
type ProgramDeriver struct {
	Program codec.Address
}

func (d ProgramDeriver) Derive(owner codec.Address) codec.Address {
	preimage := make([]byte, 0, len(consts.UserSeed)+2*codec.AddressLen+len(derivationMarker))
	preimage = append(preimage, consts.UserSeed...)
	preimage = append(preimage, owner[:]...)
	preimage = append(preimage, d.Program[:]...)
	preimage = append(preimage, derivationMarker...)
	return codec.Address(hashing.ComputeHash256Array(preimage))
}
