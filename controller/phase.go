// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package controller

import (
	"fmt"

	"github.com/ava-labs/erstate/ledger"
)

// Phase is the controller's view of an account's lifecycle. Delegating,
// Committing and Undelegating are transient: the controller leaves them only
// when the cross-venue effect is observed, or through Sync.
type Phase uint8

const (
	Uninitialized Phase = iota
	ActiveBase
	Delegating
	ActiveRollup
	Committing
	Undelegating
	Closed
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case ActiveBase:
		return "active(base)"
	case Delegating:
		return "delegating"
	case ActiveRollup:
		return "active(rollup)"
	case Committing:
		return "committing"
	case Undelegating:
		return "undelegating"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

func (p Phase) Transient() bool {
	return p == Delegating || p == Committing || p == Undelegating
}

// Owner is the venue holding write authority in a stable phase.
func (p Phase) Owner() (ledger.Venue, bool) {
	switch p {
	case ActiveBase:
		return ledger.Base, true
	case ActiveRollup:
		return ledger.Rollup, true
	default:
		return 0, false
	}
}
