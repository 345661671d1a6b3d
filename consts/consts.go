// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consts

const (
	Name = "erstate"

	IDLen         = 32
	AddressLen    = 32
	Uint64Len     = 8
	ByteLen       = 1
	MaxUint8      = ^uint8(0)
	MaxUint64     = ^uint64(0)
	SeedLen       = 32
	RandomnessLen = 32

	// DiscriminatorLen is the number of leading bytes that tag an encoded
	// account with its type.
	DiscriminatorLen = 8

	// UserSeed namespaces every state account derived from an owner.
	UserSeed = "user"

	// Bounds of the value written by a randomness fulfillment.
	MinRandomValue uint64 = 1
	MaxRandomValue uint64 = 100
)

// Well-known identities of the reference devnet.
const (
	DefaultOracleQueue     = "Cuj97ggrhhidhbu39TijNVqE74xvKJ69gDervRUXAxGh"
	DefaultRollupValidator = "MAS1Dt9qreoRMQ14YQuhg8UTZMMzDdKhmkZMECCzk57"
)
