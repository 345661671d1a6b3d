// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package account

import (
	"encoding/binary"

	"github.com/ava-labs/erstate/consts"
)

// RandomInRange maps oracle output onto [lo, hi]. It panics if lo > hi.
func RandomInRange(randomness [consts.RandomnessLen]byte, lo, hi uint64) uint64 {
	if lo > hi {
		panic("invalid random range")
	}
	span := hi - lo + 1
	x := binary.LittleEndian.Uint64(randomness[:consts.Uint64Len])
	if span == 0 {
		// [lo, hi] covers every uint64
		return x
	}
	return lo + x%span
}

// RandomValue is the value a fulfillment writes into an account.
func RandomValue(randomness [consts.RandomnessLen]byte) uint64 {
	return RandomInRange(randomness, consts.MinRandomValue, consts.MaxRandomValue)
}
